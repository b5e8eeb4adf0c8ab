package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nexusmmo/core/internal/wire"
)

// CharacterEntry tracks one logged-in character's world-wide identity.
// WorldCID is the monotonically allocated id the rest of the cluster uses
// to address this character; it survives channel-to-channel handoffs and
// is only freed on logout.
type CharacterEntry struct {
	WorldCID int32
	UUID     string
	Account  string

	mu        sync.Mutex
	ChannelID int8
}

func (e *CharacterEntry) setChannel(id int8) {
	e.mu.Lock()
	e.ChannelID = id
	e.mu.Unlock()
}

func (e *CharacterEntry) channel() int8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ChannelID
}

// RelatedResolver returns the world-cids related to cid for one
// relationship kind (friends, party, clan or team). Ownership of what
// "related" means for each kind lives in internal/group and the friends
// list storage; CharacterRegistry only fans the query out and dedups.
type RelatedResolver func(cid int32) []int32

// CharacterRegistry is the world process's character directory: the
// world-cid allocator, the uuid/cid lookup tables, and the related-
// character fan-out used to push presence updates to friends, party,
// clan and team members (spec §4.9).
type CharacterRegistry struct {
	mu      sync.Mutex
	byCID   map[int32]*CharacterEntry
	byUUID  map[string]*CharacterEntry
	nextCID atomic.Int32

	resolvers map[wire.RelatedCharacterMask]RelatedResolver
}

// NewCharacterRegistry builds an empty registry. World-cids start at 1; 0
// is reserved to mean "no character".
func NewCharacterRegistry() *CharacterRegistry {
	return &CharacterRegistry{
		byCID:     make(map[int32]*CharacterEntry),
		byUUID:    make(map[string]*CharacterEntry),
		resolvers: make(map[wire.RelatedCharacterMask]RelatedResolver),
	}
}

// SetRelatedResolver registers how to resolve one relationship kind's
// related characters. Called once at startup by whichever package owns
// that relationship (internal/group for party/clan/team, the friends list
// store for friends).
func (r *CharacterRegistry) SetRelatedResolver(kind wire.RelatedCharacterMask, resolver RelatedResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[kind] = resolver
}

// Register allocates a new world-cid for uuid/account and tracks it.
func (r *CharacterRegistry) Register(uuid, account string, channelID int8) (*CharacterEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUUID[uuid]; exists {
		return nil, fmt.Errorf("character %s is already registered", uuid)
	}
	cid := r.nextCID.Add(1)
	entry := &CharacterEntry{WorldCID: cid, UUID: uuid, Account: account, ChannelID: channelID}
	r.byCID[cid] = entry
	r.byUUID[uuid] = entry
	return entry, nil
}

// Unregister drops a character from the directory, called on logout.
func (r *CharacterRegistry) Unregister(cid int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byCID[cid]
	if !ok {
		return
	}
	delete(r.byCID, cid)
	delete(r.byUUID, entry.UUID)
}

// Lookup finds a character by world-cid.
func (r *CharacterRegistry) Lookup(cid int32) (*CharacterEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byCID[cid]
	return entry, ok
}

// LookupByUUID finds a character by its persistent uuid.
func (r *CharacterRegistry) LookupByUUID(uuid string) (*CharacterEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byUUID[uuid]
	return entry, ok
}

// SetChannel updates which channel a character is currently playing on,
// called on every channel-to-channel handoff.
func (r *CharacterRegistry) SetChannel(cid int32, channelID int8) error {
	entry, ok := r.Lookup(cid)
	if !ok {
		return fmt.Errorf("unknown world-cid %d", cid)
	}
	entry.setChannel(channelID)
	return nil
}

// RelatedCharacterLogins returns the deduplicated union of cid's related
// characters across every relationship bit set in mask.
func (r *CharacterRegistry) RelatedCharacterLogins(cid int32, mask wire.RelatedCharacterMask) []int32 {
	r.mu.Lock()
	resolvers := make(map[wire.RelatedCharacterMask]RelatedResolver, len(r.resolvers))
	for k, v := range r.resolvers {
		resolvers[k] = v
	}
	r.mu.Unlock()

	seen := make(map[int32]bool)
	var related []int32
	for _, kind := range []wire.RelatedCharacterMask{
		wire.RelatedFriends, wire.RelatedParty, wire.RelatedClan, wire.RelatedTeam,
	} {
		if mask&kind == 0 {
			continue
		}
		resolver, ok := resolvers[kind]
		if !ok {
			continue
		}
		for _, other := range resolver(cid) {
			if other == cid || seen[other] {
				continue
			}
			seen[other] = true
			related = append(related, other)
		}
	}
	return related
}

// RelaySend delivers one channel-bound relay envelope (already encoded,
// command code included) to the channel identified by channelID.
type RelaySend func(channelID int8, envelope []byte) error

// groupByChannel buckets cids by the channel each is currently logged into,
// dropping any that are not (or no longer) registered.
func (r *CharacterRegistry) groupByChannel(cids []int32) map[int8][]int32 {
	byChannel := make(map[int8][]int32)
	for _, cid := range cids {
		entry, ok := r.Lookup(cid)
		if !ok {
			continue
		}
		ch := entry.channel()
		byChannel[ch] = append(byChannel[ch], cid)
	}
	return byChannel
}

// sendGrouped writes one wire.RelayEnvelope (mode RelayModeCIDs) per
// channel bucket, stopping at the first transport error.
func (r *CharacterRegistry) sendGrouped(sourceCID int32, byChannel map[int8][]int32, payload []byte, send RelaySend) error {
	for channelID, cids := range byChannel {
		envelope := &wire.RelayEnvelope{
			SourceWorldCID: sourceCID,
			Mode:           wire.RelayModeCIDs,
			TargetCIDs:     cids,
			Payload:        payload,
		}
		p := wire.NewPacket()
		if err := p.WriteU16LE(wire.PacketRelay); err != nil {
			return fmt.Errorf("encoding relay envelope for channel %d: %w", channelID, err)
		}
		if err := envelope.Encode(p); err != nil {
			return fmt.Errorf("encoding relay envelope for channel %d: %w", channelID, err)
		}
		if err := send(channelID, p.Bytes()); err != nil {
			return fmt.Errorf("sending relay to channel %d: %w", channelID, err)
		}
	}
	return nil
}

// SendToRelated fans payload out to every related character reached through
// mask, grouping targets by the channel they are currently logged into and
// writing one wire.RelayEnvelope per channel (mode RelayModeCIDs) rather
// than one packet per character, so a channel hosting several related
// characters receives a single relay carrying all of their cids (spec §6
// "Relay envelope", §4.9). Stops at the first transport error.
func (r *CharacterRegistry) SendToRelated(sourceCID int32, mask wire.RelatedCharacterMask, payload []byte, send RelaySend) error {
	related := r.RelatedCharacterLogins(sourceCID, mask)
	return r.sendGrouped(sourceCID, r.groupByChannel(related), payload, send)
}

// ForwardToCIDs relays payload to an explicit list of target characters
// (RelayModeCIDs arriving from a channel that already resolved its own
// targets, e.g. a party/clan/team relay), grouped by destination channel
// the same way SendToRelated groups its resolved relationship targets.
func (r *CharacterRegistry) ForwardToCIDs(sourceCID int32, targetCIDs []int32, payload []byte, send RelaySend) error {
	return r.sendGrouped(sourceCID, r.groupByChannel(targetCIDs), payload, send)
}
