// Package group implements the Party, Clan, Team and PvP match-queue
// subsystems (spec §4.10 "Group subsystems"): stateful memberships layered
// on top of the account/character registries and fanned out through the
// data-sync engine. Each subsystem follows the mutex-guarded, map-of-
// pointers domain-model shape the teacher uses for its own Party/Clan
// types, generalized to the comp_hack-style group rules this core targets.
package group

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// DropRule controls what happens to a party member's share of loot/kill
// credit when they fall out of range; the party itself only needs to carry
// the setting through, not enforce it (that's channel-side game logic, out
// of scope here).
type DropRule int

const (
	DropLeaderOnly DropRule = iota
	DropParticipant
	DropEveryone
)

var (
	ErrPartyFull        = errors.New("party is full")
	ErrAlreadyInParty   = errors.New("character is already in a party")
	ErrNotInParty       = errors.New("character is not in a party")
	ErrNotPartyLeader   = errors.New("leader required")
	ErrNoPendingInvite  = errors.New("no pending invite for this character")
	ErrInviterBusy      = errors.New("invitee already has a pending invite from another character")
)

// Party is a live grouping of up to 5 characters. Membership order is
// preserved join-order so leader succession (§4.10 "oldest remaining
// member becomes leader") has a deterministic answer.
type Party struct {
	mu       sync.RWMutex
	id       uint32
	leader   int32
	members  []int32 // join order, index 0 is not necessarily the leader
	dropRule DropRule
}

// MaxPartySize is the party member cap (spec §4.3 Party type).
const MaxPartySize = 5

// ID returns the party's allocated id. 0 never appears here; the id-0
// holding area is bookkeeping internal to PartyManager and never surfaces
// as a real Party value.
func (p *Party) ID() uint32 {
	return p.id
}

// Leader returns the current party leader's world-cid.
func (p *Party) Leader() int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.leader
}

// Members returns a snapshot of the party's members in join order.
func (p *Party) Members() []int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]int32, len(p.members))
	copy(out, p.members)
	return out
}

// DropRule returns the party's current loot drop rule.
func (p *Party) DropRule() DropRule {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dropRule
}

// SetDropRule changes the party's loot drop rule.
func (p *Party) SetDropRule(rule DropRule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropRule = rule
}

func (p *Party) indexOf(cid int32) int {
	for i, m := range p.members {
		if m == cid {
			return i
		}
	}
	return -1
}

// PartyManager tracks every live party and the id-0 "invited but not yet
// joined" holding area an inviter sits in before their first invite is
// accepted (spec §4.10 "Creation is implicit").
type PartyManager struct {
	mu sync.Mutex

	parties    map[uint32]*Party
	membership map[int32]uint32 // cid -> party id, 0 means "holding area or none"
	holding    map[int32]bool   // cid -> sits in the id-0 holding area as an inviter
	invites    map[int32]int32  // inviteeCID -> inviterCID

	nextID atomic.Uint32

	// joinHook, if set, is called after a character successfully joins (or
	// forms) a party. The team subsystem uses this to force-remove the
	// character from any team it belongs to (spec §4.10 "A character
	// joining a party is force-removed from any team").
	joinHook func(cid int32)
}

// NewPartyManager builds an empty party registry.
func NewPartyManager() *PartyManager {
	return &PartyManager{
		parties:    make(map[uint32]*Party),
		membership: make(map[int32]uint32),
		holding:    make(map[int32]bool),
		invites:    make(map[int32]int32),
	}
}

// SetJoinHook registers a callback invoked with a character's cid every
// time they join or form a party.
func (m *PartyManager) SetJoinHook(fn func(cid int32)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joinHook = fn
}

// PartyOf returns the party a character currently belongs to, if any.
func (m *PartyManager) PartyOf(cid int32) (*Party, bool) {
	m.mu.Lock()
	id, ok := m.membership[cid]
	m.mu.Unlock()
	if !ok || id == 0 {
		return nil, false
	}
	m.mu.Lock()
	p := m.parties[id]
	m.mu.Unlock()
	return p, p != nil
}

// Invite places inviter into the id-0 holding area (if not already in a
// real party) and records a pending invite for invitee.
func (m *PartyManager) Invite(inviterCID, inviteeCID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id := m.membership[inviteeCID]; id != 0 {
		return ErrAlreadyInParty
	}
	if existing, ok := m.invites[inviteeCID]; ok && existing != inviterCID {
		return ErrInviterBusy
	}
	if _, ok := m.parties[m.membership[inviterCID]]; !ok {
		m.holding[inviterCID] = true
	}
	m.invites[inviteeCID] = inviterCID
	return nil
}

// AcceptInvite resolves invitee's pending invite: if the inviter has no
// real party yet, a fresh one is allocated with the inviter as leader;
// otherwise invitee joins the inviter's existing party.
func (m *PartyManager) AcceptInvite(inviteeCID int32) (*Party, error) {
	m.mu.Lock()
	inviterCID, ok := m.invites[inviteeCID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNoPendingInvite
	}
	delete(m.invites, inviteeCID)

	partyID := m.membership[inviterCID]
	party := m.parties[partyID]
	if party == nil {
		m.nextID.Add(1)
		id := m.nextID.Load()
		party = &Party{id: id, leader: inviterCID, members: []int32{inviterCID, inviteeCID}}
		m.parties[id] = party
		m.membership[inviterCID] = id
		m.membership[inviteeCID] = id
		delete(m.holding, inviterCID)
		m.mu.Unlock()
		m.runJoinHook(inviterCID)
		m.runJoinHook(inviteeCID)
		return party, nil
	}

	party.mu.Lock()
	if len(party.members) >= MaxPartySize {
		party.mu.Unlock()
		m.mu.Unlock()
		return nil, ErrPartyFull
	}
	party.members = append(party.members, inviteeCID)
	party.mu.Unlock()
	m.membership[inviteeCID] = party.id
	m.mu.Unlock()
	m.runJoinHook(inviteeCID)
	return party, nil
}

func (m *PartyManager) runJoinHook(cid int32) {
	m.mu.Lock()
	hook := m.joinHook
	m.mu.Unlock()
	if hook != nil {
		hook(cid)
	}
}

// Kick removes targetCID from leaderCID's party. Requires leaderCID to be
// the party's current leader.
func (m *PartyManager) Kick(leaderCID, targetCID int32) error {
	m.mu.Lock()
	party, err := m.requirePartyLeaderLocked(leaderCID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	disbanded := m.removeMemberLocked(party, targetCID)
	m.mu.Unlock()
	_ = disbanded
	return nil
}

// Leave removes cid from its current party, promoting a new leader or
// disbanding the party per spec §4.10 leave rules.
func (m *PartyManager) Leave(cid int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.membership[cid]
	if !ok || id == 0 {
		if m.holding[cid] {
			delete(m.holding, cid)
			return nil
		}
		return ErrNotInParty
	}
	party := m.parties[id]
	if party == nil {
		return ErrNotInParty
	}
	m.removeMemberLocked(party, cid)
	return nil
}

// Disband forcibly dissolves leaderCID's party. Requires leaderCID to be
// the current leader.
func (m *PartyManager) Disband(leaderCID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	party, err := m.requirePartyLeaderLocked(leaderCID)
	if err != nil {
		return err
	}
	m.disbandLocked(party)
	return nil
}

func (m *PartyManager) requirePartyLeaderLocked(leaderCID int32) (*Party, error) {
	id, ok := m.membership[leaderCID]
	if !ok || id == 0 {
		return nil, ErrNotInParty
	}
	party := m.parties[id]
	if party == nil {
		return nil, ErrNotInParty
	}
	if party.Leader() != leaderCID {
		return nil, ErrNotPartyLeader
	}
	return party, nil
}

// removeMemberLocked removes cid from party, handling leader succession and
// auto-disband. Must be called with m.mu held. Returns true if the party
// was disbanded as a result.
func (m *PartyManager) removeMemberLocked(party *Party, cid int32) bool {
	party.mu.Lock()
	idx := party.indexOf(cid)
	if idx < 0 {
		party.mu.Unlock()
		return false
	}
	party.members = append(party.members[:idx], party.members[idx+1:]...)
	wasLeader := party.leader == cid
	remaining := len(party.members)
	if wasLeader && remaining > 0 {
		party.leader = party.members[0]
	}
	party.mu.Unlock()

	delete(m.membership, cid)

	if remaining <= 1 {
		m.disbandLocked(party)
		return true
	}
	return false
}

// disbandLocked removes party entirely and clears every remaining member's
// membership. Must be called with m.mu held.
func (m *PartyManager) disbandLocked(party *Party) {
	party.mu.Lock()
	members := append([]int32(nil), party.members...)
	party.mu.Unlock()
	for _, cid := range members {
		delete(m.membership, cid)
	}
	delete(m.parties, party.id)
}

// RelatedMembers implements registry.RelatedResolver for the party
// relationship: every other member of cid's current party.
func (m *PartyManager) RelatedMembers(cid int32) []int32 {
	party, ok := m.PartyOf(cid)
	if !ok {
		return nil
	}
	members := party.Members()
	out := make([]int32, 0, len(members))
	for _, other := range members {
		if other != cid {
			out = append(out, other)
		}
	}
	return out
}

// Get returns a party by id, for relay/lookup code that only has the id.
func (m *PartyManager) Get(id uint32) (*Party, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parties[id]
	return p, ok
}

func (p *Party) String() string {
	return fmt.Sprintf("party(%d leader=%d members=%d)", p.id, p.Leader(), len(p.Members()))
}
