package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLobbyLoginRejectsDoubleLogin(t *testing.T) {
	r := NewAccountRegistry(5*time.Second, nil, nil)
	_, err := r.LobbyLogin("alice", 1)
	require.NoError(t, err)

	_, err = r.LobbyLogin("alice", 2)
	assert.Error(t, err)
}

func TestAssignChannelRegeneratesSessionKeyAndCompletes(t *testing.T) {
	r := NewAccountRegistry(5*time.Second, nil, nil)
	before, err := r.LobbyLogin("alice", 1)
	require.NoError(t, err)

	assigning, err := r.AssignChannel("alice", 3)
	require.NoError(t, err)
	assert.Equal(t, StateLobbyToChannel, assigning.State)
	assert.NotEqual(t, before.SessionKey, assigning.SessionKey)

	done, err := r.CompleteChannelSwitch(context.Background(), "alice", assigning.SessionKey)
	require.NoError(t, err)
	assert.Equal(t, StateChannel, done.State)
	assert.Equal(t, int8(3), done.ChannelID)
}

func TestRequestChannelSwitchRequiresChannelState(t *testing.T) {
	r := NewAccountRegistry(5*time.Second, nil, nil)
	_, err := r.LobbyLogin("alice", 1)
	require.NoError(t, err)

	_, err = r.RequestChannelSwitch("alice", 3)
	assert.Error(t, err, "switch_channel must be rejected straight from the lobby state")

	assigning, err := r.AssignChannel("alice", 3)
	require.NoError(t, err)
	_, err = r.CompleteChannelSwitch(context.Background(), "alice", assigning.SessionKey)
	require.NoError(t, err)

	switching, err := r.RequestChannelSwitch("alice", 4)
	require.NoError(t, err)
	assert.Equal(t, StateChannelToChannel, switching.State)
}

func TestCompleteChannelSwitchRejectsWrongKey(t *testing.T) {
	r := NewAccountRegistry(5*time.Second, nil, nil)
	_, err := r.LobbyLogin("alice", 1)
	require.NoError(t, err)
	_, err = r.AssignChannel("alice", 3)
	require.NoError(t, err)

	_, err = r.CompleteChannelSwitch(context.Background(), "alice", 0xDEADBEEF)
	assert.Error(t, err)
}

func TestExpireTimedOutSwitchesRevertsState(t *testing.T) {
	r := NewAccountRegistry(time.Millisecond, nil, nil)
	_, err := r.LobbyLogin("alice", 1)
	require.NoError(t, err)
	_, err = r.AssignChannel("alice", 3)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	expired := r.ExpireTimedOutSwitches(time.Now())
	require.Equal(t, []string{"alice"}, expired)

	snap, ok := r.Get("alice")
	require.True(t, ok)
	assert.Equal(t, StateLobby, snap.State)
}

func TestLogoutUsersOnChannelOnlyAffectsThatChannel(t *testing.T) {
	r := NewAccountRegistry(5*time.Second, nil, nil)
	for _, name := range []string{"alice", "bob"} {
		_, err := r.LobbyLogin(name, 1)
		require.NoError(t, err)
		s, err := r.AssignChannel(name, 3)
		require.NoError(t, err)
		_, err = r.CompleteChannelSwitch(context.Background(), name, s.SessionKey)
		require.NoError(t, err)
	}
	s, err := r.RequestChannelSwitch("bob", 4)
	require.NoError(t, err)
	_, err = r.CompleteChannelSwitch(context.Background(), "bob", s.SessionKey)
	require.NoError(t, err)

	affected := r.LogoutUsersOnChannel(3)
	assert.Equal(t, []string{"alice"}, affected)

	snap, _ := r.Get("bob")
	assert.Equal(t, StateChannel, snap.State)
}

func TestValidateChecksSessionKeyAndState(t *testing.T) {
	r := NewAccountRegistry(5*time.Second, nil, nil)
	s, err := r.LobbyLogin("alice", 1)
	require.NoError(t, err)

	assert.True(t, r.Validate("alice", s.SessionKey))
	assert.False(t, r.Validate("alice", s.SessionKey+1))

	r.Logout("alice")
	assert.False(t, r.Validate("alice", s.SessionKey))
}

func TestWebGameSessionStartEndRoundTrip(t *testing.T) {
	r := NewAccountRegistry(5*time.Second, nil, nil)

	id, err := r.StartWebGameSession("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = r.StartWebGameSession("alice")
	assert.Error(t, err, "a second web game session must be rejected while one is open")

	err = r.EndWebGameSession("alice", "wrong-id")
	assert.Error(t, err)

	err = r.EndWebGameSession("alice", id)
	require.NoError(t, err)

	_, err = r.StartWebGameSession("alice")
	require.NoError(t, err, "a new session can be opened once the previous one ended")
}
