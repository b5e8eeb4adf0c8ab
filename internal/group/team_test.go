package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndJoinTeam(t *testing.T) {
	m := NewTeamManager(nil)
	team, err := m.Create(1, CategoryPvP)
	require.NoError(t, err)

	require.NoError(t, m.Join(team.ID(), 2))
	assert.ElementsMatch(t, []int32{1, 2}, team.Members())
}

func TestPvPTeamCapsAtFiveMembers(t *testing.T) {
	m := NewTeamManager(nil)
	team, err := m.Create(1, CategoryPvP)
	require.NoError(t, err)

	for cid := int32(2); cid <= 5; cid++ {
		require.NoError(t, m.Join(team.ID(), cid))
	}

	err = m.Join(team.ID(), 6)
	assert.ErrorIs(t, err, ErrTeamFull)
}

func TestDiasporaAndCathedralCapAtTwentyMembers(t *testing.T) {
	for _, cat := range []Category{CategoryDiaspora, CategoryCathedral} {
		m := NewTeamManager(nil)
		team, err := m.Create(1, cat)
		require.NoError(t, err)

		for cid := int32(2); cid <= 20; cid++ {
			require.NoError(t, m.Join(team.ID(), cid))
		}
		err = m.Join(team.ID(), 21)
		assert.ErrorIs(t, err, ErrTeamFull)
	}
}

func TestJoinRejectsCharacterAlreadyInAParty(t *testing.T) {
	inParty := func(cid int32) bool { return cid == 2 }
	m := NewTeamManager(inParty)
	team, err := m.Create(1, CategoryPvP)
	require.NoError(t, err)

	err = m.Join(team.ID(), 2)
	assert.ErrorIs(t, err, ErrInPartyForTeam)
}

func TestLeaderSuccessionGoesToNextToJoin(t *testing.T) {
	m := NewTeamManager(nil)
	team, err := m.Create(1, CategoryPvP)
	require.NoError(t, err)
	require.NoError(t, m.Join(team.ID(), 2))
	require.NoError(t, m.Join(team.ID(), 3))

	require.NoError(t, m.Leave(1))
	assert.Equal(t, int32(2), team.Leader())
}

func TestTeamDisbandsWhenLastMemberLeaves(t *testing.T) {
	m := NewTeamManager(nil)
	team, err := m.Create(1, CategoryPvP)
	require.NoError(t, err)

	require.NoError(t, m.Leave(1))
	_, ok := m.TeamOf(1)
	assert.False(t, ok)
	_ = team
}

func TestForceRemoveIsANoOpWhenNotOnATeam(t *testing.T) {
	m := NewTeamManager(nil)
	m.ForceRemove(42)
}

func TestForceRemoveDropsCharacterFromItsTeam(t *testing.T) {
	m := NewTeamManager(nil)
	team, err := m.Create(1, CategoryPvP)
	require.NoError(t, err)
	require.NoError(t, m.Join(team.ID(), 2))

	m.ForceRemove(2)
	_, ok := m.TeamOf(2)
	assert.False(t, ok)
}

func TestDisbandCathedralWithTransitionFormsDiasporaTeam(t *testing.T) {
	m := NewTeamManager(nil)
	team, err := m.Create(1, CategoryCathedral)
	require.NoError(t, err)
	require.NoError(t, m.Join(team.ID(), 2))

	newTeam, err := m.DisbandCathedralAsDiaspora(1, true)
	require.NoError(t, err)
	require.NotNil(t, newTeam)
	assert.Equal(t, CategoryDiaspora, newTeam.Category())
	assert.ElementsMatch(t, []int32{1, 2}, newTeam.Members())

	_, ok := m.TeamOf(1)
	assert.True(t, ok)
}

func TestDisbandCathedralWithoutTransitionLeavesNoTeam(t *testing.T) {
	m := NewTeamManager(nil)
	team, err := m.Create(1, CategoryCathedral)
	require.NoError(t, err)

	newTeam, err := m.DisbandCathedralAsDiaspora(1, false)
	require.NoError(t, err)
	assert.Nil(t, newTeam)

	_, ok := m.TeamOf(1)
	assert.False(t, ok)
}

func TestDisbandCathedralRequiresLeader(t *testing.T) {
	m := NewTeamManager(nil)
	team, err := m.Create(1, CategoryCathedral)
	require.NoError(t, err)
	require.NoError(t, m.Join(team.ID(), 2))

	_, err = m.DisbandCathedralAsDiaspora(2, false)
	assert.ErrorIs(t, err, ErrNotTeamLeader)
}

func TestSetZiotiteClampsToLimits(t *testing.T) {
	m := NewTeamManager(nil)
	team, err := m.Create(1, CategoryDiaspora)
	require.NoError(t, err)
	require.NoError(t, m.Join(team.ID(), 2))

	small, large, err := m.SetZiotite(team.ID(), 100_000, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(20_000), small, "small ziotite must clamp to 10000*members")
	assert.Equal(t, int8(3), large, "large ziotite must clamp to 3")

	small, large, err = m.SetZiotite(team.ID(), -1_000_000, -10)
	require.NoError(t, err)
	assert.Equal(t, int32(0), small)
	assert.Equal(t, int8(0), large)
}
