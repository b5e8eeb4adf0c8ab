package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusmmo/core/internal/group"
)

// cidUUIDFixture is a fixed cid->uuid table for tests exercising
// ClanRepository's CIDResolver.
func cidUUIDFixture(table map[int32]string) CIDResolver {
	return func(cid int32) (string, bool) {
		uuid, ok := table[cid]
		return uuid, ok
	}
}

func TestClanCreateStampsFoundingMaster(t *testing.T) {
	pool := setupWorldDB(t)
	characters := NewCharacterRepository(pool)
	ctx := context.Background()

	require.NoError(t, characters.Create(ctx, "uuid-leader", "acct-leader", "Leader"))

	resolver := cidUUIDFixture(map[int32]string{1: "uuid-leader"})
	clans := NewClanRepository(pool, resolver)

	require.NoError(t, clans.CreateClan(ctx, 42, "clan-uuid-1", "Vanguard", 7, 1))

	row, err := characters.ByUUID(ctx, "uuid-leader")
	require.NoError(t, err)
	require.NotNil(t, row.ClanID)
	assert.EqualValues(t, 42, *row.ClanID)

	taken, err := clans.NameTaken(ctx, "Vanguard")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestClanSaveAndDeleteMember(t *testing.T) {
	pool := setupWorldDB(t)
	characters := NewCharacterRepository(pool)
	ctx := context.Background()

	require.NoError(t, characters.Create(ctx, "uuid-leader", "acct-leader", "Leader"))
	require.NoError(t, characters.Create(ctx, "uuid-member", "acct-member", "Member"))

	resolver := cidUUIDFixture(map[int32]string{1: "uuid-leader", 2: "uuid-member"})
	clans := NewClanRepository(pool, resolver)

	require.NoError(t, clans.CreateClan(ctx, 1, "clan-uuid", "Ember", 0, 1))
	require.NoError(t, clans.SaveMember(ctx, 1, group.ClanMember{CID: 2, Rank: group.RankNormal, LoginPoints: 10}))

	row, err := characters.ByUUID(ctx, "uuid-member")
	require.NoError(t, err)
	require.NotNil(t, row.ClanID)
	assert.EqualValues(t, 1, *row.ClanID)

	require.NoError(t, clans.DeleteMember(ctx, 1, 2))

	row, err = characters.ByUUID(ctx, "uuid-member")
	require.NoError(t, err)
	assert.Nil(t, row.ClanID)
}

func TestClanDisbandClearsMembersAndClanRow(t *testing.T) {
	pool := setupWorldDB(t)
	characters := NewCharacterRepository(pool)
	ctx := context.Background()

	require.NoError(t, characters.Create(ctx, "uuid-leader", "acct-leader", "Leader"))
	require.NoError(t, characters.Create(ctx, "uuid-member", "acct-member", "Member"))

	resolver := cidUUIDFixture(map[int32]string{1: "uuid-leader", 2: "uuid-member"})
	clans := NewClanRepository(pool, resolver)

	require.NoError(t, clans.CreateClan(ctx, 9, "clan-uuid-9", "Hollow", 0, 1))
	require.NoError(t, clans.SaveMember(ctx, 9, group.ClanMember{CID: 2, Rank: group.RankNormal}))

	require.NoError(t, clans.Disband(ctx, 9, []int32{1, 2}))

	leaderRow, err := characters.ByUUID(ctx, "uuid-leader")
	require.NoError(t, err)
	assert.Nil(t, leaderRow.ClanID)

	memberRow, err := characters.ByUUID(ctx, "uuid-member")
	require.NoError(t, err)
	assert.Nil(t, memberRow.ClanID)

	taken, err := clans.NameTaken(ctx, "Hollow")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestClanDisbandFailsAtomicallyWhenACIDCannotResolve(t *testing.T) {
	pool := setupWorldDB(t)
	characters := NewCharacterRepository(pool)
	ctx := context.Background()

	require.NoError(t, characters.Create(ctx, "uuid-leader", "acct-leader", "Leader"))

	resolver := cidUUIDFixture(map[int32]string{1: "uuid-leader"})
	clans := NewClanRepository(pool, resolver)
	require.NoError(t, clans.CreateClan(ctx, 5, "clan-uuid-5", "Ashen", 0, 1))

	// cid 99 has no registered character: the resolver fails before any
	// statement runs, so the clan row must still exist afterward.
	err := clans.Disband(ctx, 5, []int32{1, 99})
	require.Error(t, err)

	taken, err := clans.NameTaken(ctx, "Ashen")
	require.NoError(t, err)
	assert.True(t, taken, "clan row must survive a failed disband")
}

func TestClanCreateAcceptsAGeneratedUUID(t *testing.T) {
	pool := setupWorldDB(t)
	characters := NewCharacterRepository(pool)
	ctx := context.Background()

	require.NoError(t, characters.Create(ctx, "uuid-leader", "acct-leader", "Leader"))

	resolver := cidUUIDFixture(map[int32]string{1: "uuid-leader"})
	clans := NewClanRepository(pool, resolver)

	clanUUID := NewClanUUID()
	require.NoError(t, clans.CreateClan(ctx, 77, clanUUID, "Wayfarer", 0, 1))

	taken, err := clans.NameTaken(ctx, "Wayfarer")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestClanMaxClanIDIsZeroWhenEmpty(t *testing.T) {
	pool := setupWorldDB(t)
	clans := NewClanRepository(pool, cidUUIDFixture(nil))

	maxID, err := clans.MaxClanID(context.Background())
	require.NoError(t, err)
	assert.Zero(t, maxID)
}
