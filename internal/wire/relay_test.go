package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayEnvelopeCIDsRoundTrip(t *testing.T) {
	env := &RelayEnvelope{
		SourceWorldCID: 42,
		Mode:           RelayModeCIDs,
		TargetCIDs:     []int32{42, 43},
		Payload:        []byte{0xAA, 0xBB, 0xCC},
	}
	p := NewPacket()
	require.NoError(t, env.Encode(p))
	p.Rewind()

	got, err := DecodeRelayEnvelope(p)
	require.NoError(t, err)
	assert.Equal(t, env.SourceWorldCID, got.SourceWorldCID)
	assert.Equal(t, env.Mode, got.Mode)
	assert.Equal(t, env.TargetCIDs, got.TargetCIDs)
	assert.Equal(t, env.Payload, got.Payload)
}

func TestRelayEnvelopeFailureBounce(t *testing.T) {
	env := &RelayEnvelope{
		SourceWorldCID: 1,
		Mode:           RelayModeFailure,
		FailureTargets: []string{"offlineGuy"},
		Payload:        []byte{0x01},
	}
	p := NewPacket()
	require.NoError(t, env.Encode(p))
	p.Rewind()

	got, err := DecodeRelayEnvelope(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"offlineGuy"}, got.FailureTargets)
}

func TestDataSyncBatchPersistentRoundTrip(t *testing.T) {
	batch := &DataSyncBatch{
		Type:    "Account",
		Updates: []SyncRecord{{UUID: "uuid-1"}, {UUID: "uuid-2"}},
		Removes: []SyncRecord{{UUID: "uuid-3"}},
	}
	p := NewPacket()
	require.NoError(t, batch.Encode(p, true))
	p.Rewind()

	got, err := DecodeDataSyncBatch(p, true)
	require.NoError(t, err)
	assert.Equal(t, batch.Type, got.Type)
	assert.Equal(t, batch.Updates, got.Updates)
	assert.Equal(t, batch.Removes, got.Removes)
}

func TestDataSyncBatchNonPersistentRoundTrip(t *testing.T) {
	batch := &DataSyncBatch{
		Type:    "SearchEntry",
		Updates: []SyncRecord{{Stream: []byte{1, 2, 3}}},
	}
	p := NewPacket()
	require.NoError(t, batch.Encode(p, false))
	p.Rewind()

	got, err := DecodeDataSyncBatch(p, false)
	require.NoError(t, err)
	assert.Equal(t, batch.Updates[0].Stream, got.Updates[0].Stream)
}

func TestCharacterLoginUpdateRoundTrip(t *testing.T) {
	u := &CharacterLoginUpdate{
		WorldCID: 7,
		Flags:    CLFlagStatus | CLFlagZone,
		Status:   1,
		ZoneID:   100,
	}
	p := NewPacket()
	require.NoError(t, u.Encode(p))
	p.Rewind()

	got, err := DecodeCharacterLoginUpdate(p)
	require.NoError(t, err)
	assert.Equal(t, u.WorldCID, got.WorldCID)
	assert.Equal(t, u.Status, got.Status)
	assert.Equal(t, u.ZoneID, got.ZoneID)
	assert.Equal(t, uint32(0), got.PartyID) // unset flag stays zero value
}
