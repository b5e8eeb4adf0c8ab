package group

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClanStore is an in-memory ClanStore used to exercise ClanManager
// without a real database. failDisband simulates a rejected transaction
// (spec §8 S3).
type fakeClanStore struct {
	mu          sync.Mutex
	names       map[string]bool
	failDisband bool
}

func newFakeClanStore() *fakeClanStore {
	return &fakeClanStore{names: make(map[string]bool)}
}

func (s *fakeClanStore) CreateClan(ctx context.Context, clanID int32, uuid, name string, baseZone int32, masterCID int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[name] = true
	return nil
}

func (s *fakeClanStore) NameTaken(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[name], nil
}

func (s *fakeClanStore) SaveMember(ctx context.Context, clanID int32, member ClanMember) error {
	return nil
}

func (s *fakeClanStore) DeleteMember(ctx context.Context, clanID int32, cid int32) error {
	return nil
}

func (s *fakeClanStore) Disband(ctx context.Context, clanID int32, memberCIDs []int32) error {
	if s.failDisband {
		return errors.New("simulated transaction rollback")
	}
	return nil
}

func alwaysOnline(int32) bool { return true }

func TestFormRejectsDuplicateName(t *testing.T) {
	store := newFakeClanStore()
	m := NewClanManager(store, alwaysOnline)

	_, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)

	_, err = m.Form(context.Background(), 2, "uuid-2", "Dawnguard", 0)
	assert.ErrorIs(t, err, ErrClanNameTaken)
}

func TestInviteAddsNormalMember(t *testing.T) {
	store := newFakeClanStore()
	m := NewClanManager(store, alwaysOnline)
	clan, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)

	require.NoError(t, m.Invite(context.Background(), clan.ID(), 2))

	members := clan.Members()
	require.Len(t, members, 2)
	got, ok := m.ClanOf(2)
	require.True(t, ok)
	assert.Equal(t, clan.ID(), got.ID())
}

func TestInviteRejectsOfflineTarget(t *testing.T) {
	store := newFakeClanStore()
	m := NewClanManager(store, func(int32) bool { return false })
	clan, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)

	err = m.Invite(context.Background(), clan.ID(), 2)
	assert.ErrorIs(t, err, ErrTargetOffline)
}

func TestInviteRejectsWhenClanFull(t *testing.T) {
	store := newFakeClanStore()
	m := NewClanManager(store, alwaysOnline)
	clan, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)

	for cid := int32(2); cid <= MaxClanMembers; cid++ {
		require.NoError(t, m.Invite(context.Background(), clan.ID(), cid))
	}

	err = m.Invite(context.Background(), clan.ID(), MaxClanMembers+1)
	assert.ErrorIs(t, err, ErrClanFull)
}

func TestKickRequiresSubMasterOrMasterAndCannotTargetMaster(t *testing.T) {
	store := newFakeClanStore()
	m := NewClanManager(store, alwaysOnline)
	clan, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)
	require.NoError(t, m.Invite(context.Background(), clan.ID(), 2))
	require.NoError(t, m.Invite(context.Background(), clan.ID(), 3))

	err = m.Kick(context.Background(), 2, 3)
	assert.ErrorIs(t, err, ErrClanRankTooLow)

	err = m.Kick(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrCannotKickMaster)

	require.NoError(t, m.Kick(context.Background(), 1, 3))
	_, ok := m.ClanOf(3)
	assert.False(t, ok)
}

func TestLeaveAsMasterPromotesSubMasterBeforeNormal(t *testing.T) {
	store := newFakeClanStore()
	m := NewClanManager(store, alwaysOnline)
	clan, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)
	require.NoError(t, m.Invite(context.Background(), clan.ID(), 2))
	require.NoError(t, m.Invite(context.Background(), clan.ID(), 3))

	clan.mu.Lock()
	clan.members[3].Rank = RankSubMaster
	clan.mu.Unlock()

	require.NoError(t, m.Leave(context.Background(), 1))

	for _, mem := range clan.Members() {
		if mem.CID == 3 {
			assert.Equal(t, RankMaster, mem.Rank)
		}
	}
}

func TestLeaveAsMasterPromotesFirstNormalWhenNoSubMaster(t *testing.T) {
	store := newFakeClanStore()
	m := NewClanManager(store, alwaysOnline)
	clan, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)
	require.NoError(t, m.Invite(context.Background(), clan.ID(), 2))
	require.NoError(t, m.Invite(context.Background(), clan.ID(), 3))

	require.NoError(t, m.Leave(context.Background(), 1))

	for _, mem := range clan.Members() {
		if mem.CID == 2 {
			assert.Equal(t, RankMaster, mem.Rank)
		}
	}
}

func TestDisbandRequiresMaster(t *testing.T) {
	store := newFakeClanStore()
	m := NewClanManager(store, alwaysOnline)
	clan, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)
	require.NoError(t, m.Invite(context.Background(), clan.ID(), 2))

	_, err = m.Disband(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNotClanMaster)
}

func TestDisbandFailureLeavesNothingObservable(t *testing.T) {
	store := newFakeClanStore()
	store.failDisband = true
	m := NewClanManager(store, alwaysOnline)
	clan, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)
	require.NoError(t, m.Invite(context.Background(), clan.ID(), 2))

	_, err = m.Disband(context.Background(), 1)
	require.Error(t, err)

	got, ok := m.ClanOf(1)
	require.True(t, ok, "clan must still exist after a failed disband transaction")
	assert.Equal(t, clan.ID(), got.ID())
	_, ok = m.ClanOf(2)
	assert.True(t, ok, "member 2 must still be in the clan after a failed disband transaction")
}

func TestDisbandSucceedsAndClearsMembership(t *testing.T) {
	store := newFakeClanStore()
	m := NewClanManager(store, alwaysOnline)
	clan, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)
	require.NoError(t, m.Invite(context.Background(), clan.ID(), 2))

	members, err := m.Disband(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int32{1, 2}, members)

	_, ok := m.ClanOf(1)
	assert.False(t, ok)
	_, ok = m.ClanOf(2)
	assert.False(t, ok)
}

func TestRecomputeLevelCrossesThresholds(t *testing.T) {
	store := newFakeClanStore()
	m := NewClanManager(store, alwaysOnline)
	clan, err := m.Form(context.Background(), 1, "uuid-1", "Dawnguard", 0)
	require.NoError(t, err)

	assert.Equal(t, int32(1), m.RecomputeLevel(clan.ID()))

	clan.mu.Lock()
	clan.members[1].LoginPoints = 15_000
	clan.mu.Unlock()

	assert.Equal(t, int32(3), m.RecomputeLevel(clan.ID()))
}
