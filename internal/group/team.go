package group

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Category is a Team's purpose, which determines its member cap (spec
// §4.3 Team type).
type Category int

const (
	CategoryPvP Category = iota
	CategoryDiaspora
	CategoryCathedral
)

// maxTeamSize returns the member cap for a team category.
func maxTeamSize(cat Category) int {
	switch cat {
	case CategoryPvP:
		return 5
	case CategoryDiaspora, CategoryCathedral:
		return 20
	default:
		return 5
	}
}

// Ziotite limits (spec §4.3 Team type).
const (
	smallZiotitePerMember = 10_000
	largeZiotiteMax       = int8(3)
)

var (
	ErrAlreadyOnTeam  = errors.New("character is already on a team")
	ErrNotOnTeam      = errors.New("character is not on a team")
	ErrInPartyForTeam = errors.New("character must leave its party before joining a team")
	ErrTeamFull       = errors.New("team is full")
	ErrNotTeamLeader  = errors.New("team leader required")
)

// Team is a transient PvP/Diaspora/Cathedral grouping (spec §4.3).
type Team struct {
	mu            sync.RWMutex
	id            int32
	category      Category
	leader        int32
	members       []int32 // join order
	smallZiotite  int32
	largeZiotite  int8
}

func (t *Team) ID() int32         { return t.id }
func (t *Team) Category() Category { return t.category }

func (t *Team) Leader() int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.leader
}

func (t *Team) Members() []int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]int32, len(t.members))
	copy(out, t.members)
	return out
}

func (t *Team) Ziotite() (small int32, large int8) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.smallZiotite, t.largeZiotite
}

// TeamManager tracks every live team.
type TeamManager struct {
	mu sync.Mutex

	teams      map[int32]*Team
	membership map[int32]int32 // cid -> team id

	nextID atomic.Int32

	// inParty reports whether cid currently belongs to a party; wired to
	// PartyManager.PartyOf by the group Coordinator.
	inParty func(cid int32) bool
}

// NewTeamManager builds an empty team registry. inParty may be nil in
// tests that don't exercise the party/team interaction.
func NewTeamManager(inParty func(cid int32) bool) *TeamManager {
	return &TeamManager{
		teams:      make(map[int32]*Team),
		membership: make(map[int32]int32),
		inParty:    inParty,
	}
}

// Create forms a new team with creatorCID as its default leader.
func (m *TeamManager) Create(creatorCID int32, category Category) (*Team, error) {
	if err := m.checkEligible(creatorCID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.nextID.Add(1)
	id := m.nextID.Load()
	team := &Team{id: id, category: category, leader: creatorCID, members: []int32{creatorCID}}
	m.teams[id] = team
	m.membership[creatorCID] = id
	m.mu.Unlock()
	return team, nil
}

// Join adds cid to an existing team, subject to category capacity and the
// not-in-a-party rule.
func (m *TeamManager) Join(teamID, cid int32) error {
	if err := m.checkEligible(cid); err != nil {
		return err
	}

	m.mu.Lock()
	team := m.teams[teamID]
	if team == nil {
		m.mu.Unlock()
		return ErrNotOnTeam
	}
	team.mu.Lock()
	if len(team.members) >= maxTeamSize(team.category) {
		team.mu.Unlock()
		m.mu.Unlock()
		return ErrTeamFull
	}
	team.members = append(team.members, cid)
	team.mu.Unlock()
	m.membership[cid] = teamID
	m.mu.Unlock()
	return nil
}

func (m *TeamManager) checkEligible(cid int32) error {
	m.mu.Lock()
	_, onTeam := m.membership[cid]
	m.mu.Unlock()
	if onTeam {
		return ErrAlreadyOnTeam
	}
	if m.inParty != nil && m.inParty(cid) {
		return ErrInPartyForTeam
	}
	return nil
}

// Leave removes cid from its team. If cid was the leader and teammates
// remain, the next-to-join is promoted; if cid was the last member the
// team is disbanded.
func (m *TeamManager) Leave(cid int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	teamID, ok := m.membership[cid]
	if !ok {
		return ErrNotOnTeam
	}
	team := m.teams[teamID]
	if team == nil {
		return ErrNotOnTeam
	}

	team.mu.Lock()
	idx := -1
	for i, member := range team.members {
		if member == cid {
			idx = i
			break
		}
	}
	if idx < 0 {
		team.mu.Unlock()
		return ErrNotOnTeam
	}
	team.members = append(team.members[:idx], team.members[idx+1:]...)
	wasLeader := team.leader == cid
	remaining := len(team.members)
	if wasLeader && remaining > 0 {
		team.leader = team.members[0]
	}
	team.mu.Unlock()

	delete(m.membership, cid)
	if remaining == 0 {
		delete(m.teams, teamID)
	}
	return nil
}

// ForceRemove removes cid from whatever team it is on, if any, with no
// eligibility checks. Wired as PartyManager's join hook (spec §4.10 "A
// character joining a party is force-removed from any team").
func (m *TeamManager) ForceRemove(cid int32) {
	m.mu.Lock()
	_, onTeam := m.membership[cid]
	m.mu.Unlock()
	if onTeam {
		_ = m.Leave(cid)
	}
}

// DisbandCathedralAsDiaspora dissolves a Cathedral team, optionally
// transitioning its remaining members directly into a new Diaspora team in
// the same call (spec §4.10).
func (m *TeamManager) DisbandCathedralAsDiaspora(leaderCID int32, transition bool) (*Team, error) {
	m.mu.Lock()
	teamID, ok := m.membership[leaderCID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotOnTeam
	}
	team := m.teams[teamID]
	if team == nil {
		m.mu.Unlock()
		return nil, ErrNotOnTeam
	}
	if team.category != CategoryCathedral {
		m.mu.Unlock()
		return nil, errors.New("team is not a cathedral team")
	}
	if team.Leader() != leaderCID {
		m.mu.Unlock()
		return nil, ErrNotTeamLeader
	}

	members := team.Members()
	for _, cid := range members {
		delete(m.membership, cid)
	}
	delete(m.teams, teamID)
	m.mu.Unlock()

	if !transition || len(members) == 0 {
		return nil, nil
	}

	m.mu.Lock()
	m.nextID.Add(1)
	id := m.nextID.Load()
	newTeam := &Team{id: id, category: CategoryDiaspora, leader: members[0], members: members}
	m.teams[id] = newTeam
	for _, cid := range members {
		m.membership[cid] = id
	}
	m.mu.Unlock()
	return newTeam, nil
}

// SetZiotite adjusts small/large ziotite counters, clamping to the limits
// in spec §4.3 (small: 0..10000*members, large: 0..3). Returns the
// resulting values so the caller can push them through the sync engine.
func (m *TeamManager) SetZiotite(teamID int32, smallDelta int32, largeDelta int8) (int32, int8, error) {
	m.mu.Lock()
	team := m.teams[teamID]
	m.mu.Unlock()
	if team == nil {
		return 0, 0, ErrNotOnTeam
	}

	team.mu.Lock()
	defer team.mu.Unlock()

	maxSmall := int32(len(team.members)) * smallZiotitePerMember
	team.smallZiotite = clampI32(team.smallZiotite+smallDelta, 0, maxSmall)
	team.largeZiotite = clampI8(team.largeZiotite+largeDelta, 0, largeZiotiteMax)
	return team.smallZiotite, team.largeZiotite, nil
}

// TeamOf returns cid's current team, if any.
func (m *TeamManager) TeamOf(cid int32) (*Team, bool) {
	m.mu.Lock()
	teamID, ok := m.membership[cid]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	team := m.teams[teamID]
	m.mu.Unlock()
	return team, team != nil
}

// RelatedMembers implements registry.RelatedResolver for the team
// relationship: every other member of cid's current team.
func (m *TeamManager) RelatedMembers(cid int32) []int32 {
	team, ok := m.TeamOf(cid)
	if !ok {
		return nil
	}
	members := team.Members()
	out := make([]int32, 0, len(members))
	for _, other := range members {
		if other != cid {
			out = append(out, other)
		}
	}
	return out
}

func clampI32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI8(v, lo, hi int8) int8 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
