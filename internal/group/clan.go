package group

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// MemberRank is a clan member's standing, mirroring the teacher's
// pledge-type/power-grade split collapsed to the three ranks spec.md §4.3
// names.
type MemberRank int

const (
	RankNormal MemberRank = iota
	RankSubMaster
	RankMaster
)

// MaxClanMembers is MAX_CLAN_COUNT from spec §4.10 ("typically 30").
const MaxClanMembers = 30

// clanLevelThresholds maps cumulative member login-points to a clan level
// 1..10 (spec §4.10 "fixed threshold table"). Index i holds the minimum
// points required for level i+1.
var clanLevelThresholds = [10]int64{
	0, 5_000, 15_000, 40_000, 100_000, 250_000, 500_000, 1_000_000, 2_500_000, 5_000_000,
}

var (
	ErrClanNameTaken    = errors.New("clan name is already taken")
	ErrClanFull         = errors.New("clan is full")
	ErrAlreadyInClan    = errors.New("character is already in a clan")
	ErrNotInClan        = errors.New("character is not in a clan")
	ErrTargetOffline    = errors.New("target is not online")
	ErrClanRankTooLow   = errors.New("insufficient clan rank")
	ErrCannotKickMaster = errors.New("the clan master cannot be kicked")
	ErrNotClanMaster    = errors.New("clan master required")
)

// ClanMember is one character's standing within a clan.
type ClanMember struct {
	CID         int32
	Rank        MemberRank
	LoginPoints int64
}

// Clan is a persistent player organization. The runtime id only exists to
// avoid repeated UUID lookups on the hot path (spec §4.3 ClanInfo).
type Clan struct {
	mu       sync.RWMutex
	id       int32
	uuid     string
	name     string
	baseZone int32
	level    int32
	order    []int32 // join order, oldest first
	members  map[int32]*ClanMember
}

func (c *Clan) ID() int32   { return c.id }
func (c *Clan) UUID() string { return c.uuid }
func (c *Clan) Name() string { return c.name }

func (c *Clan) Level() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.level
}

// Members returns a snapshot of every clan member.
func (c *Clan) Members() []ClanMember {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ClanMember, 0, len(c.order))
	for _, cid := range c.order {
		out = append(out, *c.members[cid])
	}
	return out
}

func (c *Clan) masterLocked() *ClanMember {
	for _, cid := range c.order {
		if m := c.members[cid]; m.Rank == RankMaster {
			return m
		}
	}
	return nil
}

// ClanStore persists clan state. internal/db provides the pgx-backed
// implementation (grounded on the teacher's ClanRepository); tests use an
// in-memory fake. Disband is the one operation spec.md requires to be
// transactional (§8 S3): either every row changes or none does.
type ClanStore interface {
	CreateClan(ctx context.Context, clanID int32, uuid, name string, baseZone int32, masterCID int32) error
	NameTaken(ctx context.Context, name string) (bool, error)
	SaveMember(ctx context.Context, clanID int32, member ClanMember) error
	DeleteMember(ctx context.Context, clanID int32, cid int32) error
	Disband(ctx context.Context, clanID int32, memberCIDs []int32) error
}

// ClanManager tracks every clan currently loaded into memory.
type ClanManager struct {
	mu sync.Mutex

	clans      map[int32]*Clan
	byName     map[string]int32
	membership map[int32]int32 // cid -> clan id

	nextID atomic.Int32
	store  ClanStore

	// isOnline reports whether a character is currently logged in
	// (required by Invite per spec §4.10).
	isOnline func(cid int32) bool
}

// NewClanManager builds an empty clan registry backed by store.
func NewClanManager(store ClanStore, isOnline func(cid int32) bool) *ClanManager {
	return &ClanManager{
		clans:      make(map[int32]*Clan),
		byName:     make(map[string]int32),
		membership: make(map[int32]int32),
		store:      store,
		isOnline:   isOnline,
	}
}

// Form creates a new clan named name with creatorCID as MASTER. Fails if
// the name is already taken.
func (m *ClanManager) Form(ctx context.Context, creatorCID int32, uuid, name string, baseZone int32) (*Clan, error) {
	m.mu.Lock()
	if _, exists := m.byName[name]; exists {
		m.mu.Unlock()
		return nil, ErrClanNameTaken
	}
	if taken, err := m.store.NameTaken(ctx, name); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("checking clan name: %w", err)
	} else if taken {
		m.mu.Unlock()
		return nil, ErrClanNameTaken
	}
	m.nextID.Add(1)
	id := m.nextID.Load()
	m.mu.Unlock()

	if err := m.store.CreateClan(ctx, id, uuid, name, baseZone, creatorCID); err != nil {
		return nil, fmt.Errorf("persisting clan %s: %w", name, err)
	}

	clan := &Clan{
		id:       id,
		uuid:     uuid,
		name:     name,
		baseZone: baseZone,
		level:    1,
		order:    []int32{creatorCID},
		members:  map[int32]*ClanMember{creatorCID: {CID: creatorCID, Rank: RankMaster}},
	}

	m.mu.Lock()
	m.clans[id] = clan
	m.byName[name] = id
	m.membership[creatorCID] = id
	m.mu.Unlock()
	return clan, nil
}

// Invite admits targetCID directly into clanID. The target must be online
// and not already in a clan, and the clan must have room.
func (m *ClanManager) Invite(ctx context.Context, clanID, targetCID int32) error {
	if m.isOnline != nil && !m.isOnline(targetCID) {
		return ErrTargetOffline
	}
	m.mu.Lock()
	if _, inClan := m.membership[targetCID]; inClan {
		m.mu.Unlock()
		return ErrAlreadyInClan
	}
	clan := m.clans[clanID]
	if clan == nil {
		m.mu.Unlock()
		return ErrNotInClan
	}
	clan.mu.Lock()
	if len(clan.order) >= MaxClanMembers {
		clan.mu.Unlock()
		m.mu.Unlock()
		return ErrClanFull
	}
	clan.mu.Unlock()
	m.mu.Unlock()

	if err := m.store.SaveMember(ctx, clanID, ClanMember{CID: targetCID, Rank: RankNormal}); err != nil {
		return fmt.Errorf("persisting clan member %d: %w", targetCID, err)
	}

	clan.mu.Lock()
	clan.order = append(clan.order, targetCID)
	clan.members[targetCID] = &ClanMember{CID: targetCID, Rank: RankNormal}
	clan.mu.Unlock()

	m.mu.Lock()
	m.membership[targetCID] = clanID
	m.mu.Unlock()

	m.RecomputeLevel(clanID)
	return nil
}

// Kick removes targetCID from its clan. Requires requesterCID to be MASTER
// or SUB_MASTER; the MASTER can never be kicked.
func (m *ClanManager) Kick(ctx context.Context, requesterCID, targetCID int32) error {
	clan, err := m.clanOf(targetCID)
	if err != nil {
		return err
	}

	clan.mu.Lock()
	requester, ok := clan.members[requesterCID]
	if !ok || requester.Rank == RankNormal {
		clan.mu.Unlock()
		return ErrClanRankTooLow
	}
	target, ok := clan.members[targetCID]
	if !ok {
		clan.mu.Unlock()
		return ErrNotInClan
	}
	if target.Rank == RankMaster {
		clan.mu.Unlock()
		return ErrCannotKickMaster
	}
	clan.mu.Unlock()

	return m.removeMember(ctx, clan, targetCID)
}

// Leave removes cid from its clan. If cid is MASTER, the first SUB_MASTER
// (or, failing that, the first NORMAL member in join order) is promoted.
func (m *ClanManager) Leave(ctx context.Context, cid int32) error {
	clan, err := m.clanOf(cid)
	if err != nil {
		return err
	}

	clan.mu.Lock()
	leaving := clan.members[cid]
	wasMaster := leaving != nil && leaving.Rank == RankMaster
	clan.mu.Unlock()

	if err := m.removeMember(ctx, clan, cid); err != nil {
		return err
	}
	if !wasMaster {
		return nil
	}

	clan.mu.Lock()
	var promote *ClanMember
	for _, memberCID := range clan.order {
		if cm := clan.members[memberCID]; cm.Rank == RankSubMaster {
			promote = cm
			break
		}
	}
	if promote == nil {
		for _, memberCID := range clan.order {
			promote = clan.members[memberCID]
			break
		}
	}
	if promote != nil {
		promote.Rank = RankMaster
	}
	clan.mu.Unlock()

	if promote != nil {
		if err := m.store.SaveMember(ctx, clan.id, *promote); err != nil {
			return fmt.Errorf("persisting promoted clan master: %w", err)
		}
	}
	return nil
}

func (m *ClanManager) removeMember(ctx context.Context, clan *Clan, cid int32) error {
	if err := m.store.DeleteMember(ctx, clan.id, cid); err != nil {
		return fmt.Errorf("deleting clan member %d: %w", cid, err)
	}

	clan.mu.Lock()
	delete(clan.members, cid)
	for i, memberCID := range clan.order {
		if memberCID == cid {
			clan.order = append(clan.order[:i], clan.order[i+1:]...)
			break
		}
	}
	clan.mu.Unlock()

	m.mu.Lock()
	delete(m.membership, cid)
	m.mu.Unlock()

	m.RecomputeLevel(clan.id)
	return nil
}

// Disband dissolves clanID in a single transactional changeset: every
// member row, the clan row, and the clan reference on each character are
// removed together, or nothing is (spec §8 S3). Requires masterCID to be
// the clan's MASTER.
func (m *ClanManager) Disband(ctx context.Context, masterCID int32) ([]int32, error) {
	clan, err := m.clanOf(masterCID)
	if err != nil {
		return nil, err
	}

	clan.mu.RLock()
	master := clan.members[masterCID]
	members := append([]int32(nil), clan.order...)
	clan.mu.RUnlock()
	if master == nil || master.Rank != RankMaster {
		return nil, ErrNotClanMaster
	}

	if err := m.store.Disband(ctx, clan.id, members); err != nil {
		return nil, fmt.Errorf("disbanding clan %d: %w", clan.id, err)
	}

	m.mu.Lock()
	delete(m.clans, clan.id)
	delete(m.byName, clan.name)
	for _, cid := range members {
		delete(m.membership, cid)
	}
	m.mu.Unlock()

	return members, nil
}

// RecomputeLevel sums every member's login points and maps the total to a
// level 1..10 against the fixed threshold table (spec §4.10), called on
// join, leave, disband and daily login.
func (m *ClanManager) RecomputeLevel(clanID int32) int32 {
	m.mu.Lock()
	clan := m.clans[clanID]
	m.mu.Unlock()
	if clan == nil {
		return 0
	}

	clan.mu.Lock()
	defer clan.mu.Unlock()
	var total int64
	for _, cm := range clan.members {
		total += cm.LoginPoints
	}
	level := int32(1)
	for i, threshold := range clanLevelThresholds {
		if total >= threshold {
			level = int32(i + 1)
		}
	}
	clan.level = level
	return level
}

// AddMemberLoginPoints credits delta login points to cid's in-memory clan
// standing, the figure RecomputeLevel sums across members. It does not
// itself persist the character row; callers that also need the persisted
// total updated (db.CharacterRepository.AddLoginPoints) do so separately.
func (m *ClanManager) AddMemberLoginPoints(cid int32, delta int64) {
	clan, err := m.clanOf(cid)
	if err != nil {
		return
	}
	clan.mu.Lock()
	if member, ok := clan.members[cid]; ok {
		member.LoginPoints += delta
	}
	clan.mu.Unlock()
}

func (m *ClanManager) clanOf(cid int32) (*Clan, error) {
	m.mu.Lock()
	clanID, ok := m.membership[cid]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotInClan
	}
	clan := m.clans[clanID]
	m.mu.Unlock()
	if clan == nil {
		return nil, ErrNotInClan
	}
	return clan, nil
}

// ClanOf exposes clanOf for callers outside the package (e.g. the relay
// mode RelayModeClan needs to resolve a clan's member cids).
func (m *ClanManager) ClanOf(cid int32) (*Clan, bool) {
	clan, err := m.clanOf(cid)
	if err != nil {
		return nil, false
	}
	return clan, true
}

// RelatedMembers implements registry.RelatedResolver for the clan
// relationship: every other member of cid's clan.
func (m *ClanManager) RelatedMembers(cid int32) []int32 {
	clan, ok := m.ClanOf(cid)
	if !ok {
		return nil
	}
	clan.mu.RLock()
	defer clan.mu.RUnlock()
	out := make([]int32, 0, len(clan.order))
	for _, other := range clan.order {
		if other != cid {
			out = append(out, other)
		}
	}
	return out
}
