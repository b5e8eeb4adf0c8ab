package group

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusmmo/core/internal/bus"
)

func testMatchConfig() MatchConfig {
	return MatchConfig{
		MinPlayers: map[int32]int{1: 4},
		Ghosts:     map[int32]int{},
		QueueWait:  15 * time.Millisecond,
	}
}

func TestAddEntryRejectsDuplicateQueueing(t *testing.T) {
	tm := bus.NewTimerManager()
	defer tm.Stop()
	m := NewMatchManager(testMatchConfig(), tm, nil, nil)

	require.NoError(t, m.AddEntry(1, 0, 1))
	err := m.AddEntry(1, 0, 1)
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestMatchFormsOnceThresholdIsMetAndClockElapses(t *testing.T) {
	tm := bus.NewTimerManager()
	defer tm.Stop()
	m := NewMatchManager(testMatchConfig(), tm, nil, nil)

	for cid := int32(1); cid <= 4; cid++ {
		require.NoError(t, m.AddEntry(cid, 0, 1))
	}

	require.Eventually(t, func() bool {
		for cid := int32(1); cid <= 4; cid++ {
			if _, queued := m.EntryOf(cid); queued {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond, "all four entries should be consumed into a formed match")

	var found *PvPMatch
	for id := int32(1); id <= 4; id++ {
		if match, ok := m.Match(id); ok {
			found = match
			break
		}
	}
	require.NotNil(t, found)
	assert.Len(t, found.Blue, 2)
	assert.Len(t, found.Red, 2)
}

func TestMatchDoesNotFormWhenCountDropsBelowThresholdBeforeFire(t *testing.T) {
	tm := bus.NewTimerManager()
	defer tm.Stop()
	m := NewMatchManager(testMatchConfig(), tm, nil, nil)

	for cid := int32(1); cid <= 4; cid++ {
		require.NoError(t, m.AddEntry(cid, 0, 1))
	}
	// Drop below threshold immediately; the already-scheduled timer must
	// see the cleared ready-time and do nothing when it fires.
	require.NoError(t, m.RemoveEntry(4))

	time.Sleep(60 * time.Millisecond)

	_, ok := m.EntryOf(1)
	assert.True(t, ok, "remaining entries must still be queued, no match should have formed")
}

func TestRemoveEntryCascadesToTeamSiblings(t *testing.T) {
	tm := bus.NewTimerManager()
	defer tm.Stop()
	m := NewMatchManager(testMatchConfig(), tm, nil, nil)

	require.NoError(t, m.AddEntry(1, 100, 1))
	require.NoError(t, m.AddEntry(2, 100, 1))
	require.NoError(t, m.AddEntry(3, 200, 1))

	require.NoError(t, m.RemoveEntry(1))

	_, ok := m.EntryOf(1)
	assert.False(t, ok)
	_, ok = m.EntryOf(2)
	assert.False(t, ok, "sibling sharing the same team-id must be removed too")
	_, ok = m.EntryOf(3)
	assert.True(t, ok, "entry belonging to a different team-id must be unaffected")
}

func TestRemoveEntryRejectsUnqueuedCharacter(t *testing.T) {
	tm := bus.NewTimerManager()
	defer tm.Stop()
	m := NewMatchManager(testMatchConfig(), tm, nil, nil)

	err := m.RemoveEntry(99)
	assert.ErrorIs(t, err, ErrNotQueued)
}

func TestGhostsCountTowardThresholdButNotRoster(t *testing.T) {
	tm := bus.NewTimerManager()
	defer tm.Stop()
	config := MatchConfig{
		MinPlayers: map[int32]int{1: 4},
		Ghosts:     map[int32]int{1: 2},
		QueueWait:  15 * time.Millisecond,
	}
	m := NewMatchManager(config, tm, nil, nil)

	require.NoError(t, m.AddEntry(1, 0, 1))
	require.NoError(t, m.AddEntry(2, 0, 1))

	require.Eventually(t, func() bool {
		_, queued := m.EntryOf(1)
		return !queued
	}, time.Second, 5*time.Millisecond, "two real entries plus two ghosts should cross the threshold of 4")

	var found *PvPMatch
	for id := int32(1); id <= 4; id++ {
		if match, ok := m.Match(id); ok {
			found = match
			break
		}
	}
	require.NotNil(t, found)
	assert.Len(t, found.Blue, 1)
	assert.Len(t, found.Red, 1, "ghosts count toward the threshold but never appear in the formed roster")
}

func TestChannelPickerAssignsFormedMatchChannel(t *testing.T) {
	tm := bus.NewTimerManager()
	defer tm.Stop()
	picker := func(matchType int32) int8 { return 7 }
	m := NewMatchManager(testMatchConfig(), tm, nil, picker)

	for cid := int32(1); cid <= 4; cid++ {
		require.NoError(t, m.AddEntry(cid, 0, 1))
	}

	require.Eventually(t, func() bool {
		_, queued := m.EntryOf(1)
		return !queued
	}, time.Second, 5*time.Millisecond)

	var found *PvPMatch
	for id := int32(1); id <= 4; id++ {
		if match, ok := m.Match(id); ok {
			found = match
			break
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, int8(7), found.ChannelID)
}
