package group

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusmmo/core/internal/registry"
	"github.com/nexusmmo/core/internal/wire"
)

func newCoordinatorForTest(t *testing.T) (*Coordinator, *registry.CharacterRegistry) {
	t.Helper()
	characters := registry.NewCharacterRegistry()
	store := newFakeClanStore()
	coord := NewCoordinator(characters, store, alwaysOnline, nil, nil, testMatchConfig(), nil)
	return coord, characters
}

func TestCoordinatorRegistersPartyRelatedResolver(t *testing.T) {
	coord, characters := newCoordinatorForTest(t)

	require.NoError(t, coord.Party.Invite(1, 2))
	_, err := coord.Party.AcceptInvite(2)
	require.NoError(t, err)

	related := characters.RelatedCharacterLogins(1, wire.RelatedParty)
	assert.Equal(t, []int32{2}, related)
}

func TestCoordinatorRegistersClanAndTeamRelatedResolvers(t *testing.T) {
	coord, characters := newCoordinatorForTest(t)

	clan, err := coord.Clan.Form(context.Background(), 10, "uuid-10", "Dawnguard", 0)
	require.NoError(t, err)
	require.NoError(t, coord.Clan.Invite(context.Background(), clan.ID(), 11))

	assert.Equal(t, []int32{11}, characters.RelatedCharacterLogins(10, wire.RelatedClan))

	team, err := coord.Team.Create(20, CategoryPvP)
	require.NoError(t, err)
	require.NoError(t, coord.Team.Join(team.ID(), 21))

	assert.Equal(t, []int32{21}, characters.RelatedCharacterLogins(20, wire.RelatedTeam))
}

func TestJoiningPartyForceRemovesFromTeam(t *testing.T) {
	coord, _ := newCoordinatorForTest(t)

	team, err := coord.Team.Create(1, CategoryPvP)
	require.NoError(t, err)
	require.NoError(t, coord.Team.Join(team.ID(), 2))

	require.NoError(t, coord.Party.Invite(2, 3))
	_, err = coord.Party.AcceptInvite(3)
	require.NoError(t, err)

	_, onTeam := coord.Team.TeamOf(2)
	assert.False(t, onTeam, "joining a party must force-remove the character from its team")
}
