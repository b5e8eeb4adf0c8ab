package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteAcceptFormsPartyWithInviterAsLeader(t *testing.T) {
	m := NewPartyManager()

	require.NoError(t, m.Invite(1, 2))
	party, err := m.AcceptInvite(2)
	require.NoError(t, err)

	assert.Equal(t, int32(1), party.Leader())
	assert.ElementsMatch(t, []int32{1, 2}, party.Members())

	p, ok := m.PartyOf(1)
	require.True(t, ok)
	assert.Equal(t, party.ID(), p.ID())
}

func TestSecondInviteJoinsExistingParty(t *testing.T) {
	m := NewPartyManager()
	require.NoError(t, m.Invite(1, 2))
	_, err := m.AcceptInvite(2)
	require.NoError(t, err)

	require.NoError(t, m.Invite(1, 3))
	party, err := m.AcceptInvite(3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int32{1, 2, 3}, party.Members())
}

func TestInviteRejectsAlreadyInPartyTarget(t *testing.T) {
	m := NewPartyManager()
	require.NoError(t, m.Invite(1, 2))
	_, err := m.AcceptInvite(2)
	require.NoError(t, err)

	err = m.Invite(3, 2)
	assert.ErrorIs(t, err, ErrAlreadyInParty)
}

func TestPartyCapsAtFiveMembers(t *testing.T) {
	m := NewPartyManager()
	require.NoError(t, m.Invite(1, 2))
	_, err := m.AcceptInvite(2)
	require.NoError(t, err)

	for cid := int32(3); cid <= 5; cid++ {
		require.NoError(t, m.Invite(1, cid))
		_, err := m.AcceptInvite(cid)
		require.NoError(t, err)
	}

	require.NoError(t, m.Invite(1, 6))
	_, err = m.AcceptInvite(6)
	assert.ErrorIs(t, err, ErrPartyFull)
}

func TestLeaderDeathPromotesOldestRemainingMember(t *testing.T) {
	m := NewPartyManager()
	require.NoError(t, m.Invite(1, 2))
	_, err := m.AcceptInvite(2)
	require.NoError(t, err)
	require.NoError(t, m.Invite(1, 3))
	party, err := m.AcceptInvite(3)
	require.NoError(t, err)

	require.NoError(t, m.Leave(1))
	assert.Equal(t, int32(2), party.Leader())
	assert.ElementsMatch(t, []int32{2, 3}, party.Members())
}

func TestPartyAutoDisbandsAtOneMember(t *testing.T) {
	m := NewPartyManager()
	require.NoError(t, m.Invite(1, 2))
	_, err := m.AcceptInvite(2)
	require.NoError(t, err)

	require.NoError(t, m.Leave(2))

	_, ok := m.PartyOf(1)
	assert.False(t, ok, "party should have auto-disbanded with only one member left")
}

func TestKickRequiresLeader(t *testing.T) {
	m := NewPartyManager()
	require.NoError(t, m.Invite(1, 2))
	_, err := m.AcceptInvite(2)
	require.NoError(t, err)
	require.NoError(t, m.Invite(1, 3))
	_, err = m.AcceptInvite(3)
	require.NoError(t, err)

	err = m.Kick(2, 3)
	assert.ErrorIs(t, err, ErrNotPartyLeader)

	err = m.Kick(1, 3)
	assert.NoError(t, err)
	_, ok := m.PartyOf(3)
	assert.False(t, ok)
}

func TestRelatedMembersExcludesSelf(t *testing.T) {
	m := NewPartyManager()
	require.NoError(t, m.Invite(1, 2))
	_, err := m.AcceptInvite(2)
	require.NoError(t, err)

	related := m.RelatedMembers(1)
	assert.Equal(t, []int32{2}, related)
}

func TestJoinHookFiresOnFormAndOnJoin(t *testing.T) {
	m := NewPartyManager()
	var hooked []int32
	m.SetJoinHook(func(cid int32) { hooked = append(hooked, cid) })

	require.NoError(t, m.Invite(1, 2))
	_, err := m.AcceptInvite(2)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int32{1, 2}, hooked)
}

func TestLeaveWithNoPartyIsAnError(t *testing.T) {
	m := NewPartyManager()
	err := m.Leave(99)
	assert.ErrorIs(t, err, ErrNotInParty)
}
