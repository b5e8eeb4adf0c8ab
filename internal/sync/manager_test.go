package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusmmo/core/internal/wire"
)

func syncRecordsFromUUIDs(uuids []string) []wire.SyncRecord {
	records := make([]wire.SyncRecord, len(uuids))
	for i, u := range uuids {
		records[i] = wire.SyncRecord{UUID: u}
	}
	return records
}

type fakeSink struct {
	sent [][]byte
}

func (f *fakeSink) SendPacket(payload []byte, closeAfter bool) error {
	f.sent = append(f.sent, payload)
	return nil
}

type fakeAccount struct {
	UUID string
	Name string
}

func TestSyncOutgoingBuildsOnePacketPerSubscribedType(t *testing.T) {
	mgr := NewManager()
	require.NoError(t, mgr.RegisterType(&TypeConfig{
		Name:       "Account",
		Persistent: true,
	}))

	sink := &fakeSink{}
	require.True(t, mgr.RegisterConnection(sink, []string{"Account"}))

	require.True(t, mgr.UpdateRecord("Account", "uuid-1", &fakeAccount{UUID: "uuid-1"}))
	require.True(t, mgr.UpdateRecord("Account", "uuid-2", &fakeAccount{UUID: "uuid-2"}))

	mgr.SyncOutgoing()
	require.Len(t, sink.sent, 1)

	// A second call with nothing queued sends nothing further.
	mgr.SyncOutgoing()
	assert.Len(t, sink.sent, 1)
}

func TestUpdateThenRemoveCancelsPriorQueueEntry(t *testing.T) {
	mgr := NewManager()
	require.NoError(t, mgr.RegisterType(&TypeConfig{Name: "Account", Persistent: true}))
	sink := &fakeSink{}
	require.True(t, mgr.RegisterConnection(sink, []string{"Account"}))

	require.True(t, mgr.UpdateRecord("Account", "uuid-1", &fakeAccount{UUID: "uuid-1"}))
	require.True(t, mgr.RemoveRecord("Account", "uuid-1", &fakeAccount{UUID: "uuid-1"}))

	mgr.mu.Lock()
	_, stillQueuedAsUpdate := mgr.outboundUpdates["Account"]["uuid-1"]
	_, queuedAsRemove := mgr.outboundRemoves["Account"]["uuid-1"]
	mgr.mu.Unlock()
	assert.False(t, stillQueuedAsUpdate)
	assert.True(t, queuedAsRemove)
}

func TestSyncIncomingAppliesPersistentUpdatesAndCallsCompleteHandler(t *testing.T) {
	mgr := NewManager()
	loaded := map[string]*fakeAccount{
		"uuid-1": {UUID: "uuid-1", Name: "alice"},
	}
	var completeCalls []CompleteRecord
	require.NoError(t, mgr.RegisterType(&TypeConfig{
		Name:       "Account",
		Persistent: true,
		Load: func(uuid string) (any, error) {
			return loaded[uuid], nil
		},
		SyncCompleteHandler: func(m *Manager, records []CompleteRecord, source string) {
			completeCalls = append(completeCalls, records...)
		},
	}))

	outgoing := &wire.DataSyncBatch{Type: "Account", Updates: syncRecordsFromUUIDs([]string{"uuid-1"})}
	payload, err := encodeDataSyncPacketFor(outgoing, true)
	require.NoError(t, err)

	batch, err := mgr.DecodeIncoming(payload[2:]) // strip the command code like a real handler would
	require.NoError(t, err)
	require.NoError(t, mgr.SyncIncoming(batch, "channel-1"))

	require.Len(t, completeCalls, 1)
	assert.Equal(t, "uuid-1", completeCalls[0].Key)
	assert.Equal(t, loaded["uuid-1"], completeCalls[0].Record)
}

func TestSyncIncomingSkipsUnregisteredType(t *testing.T) {
	mgr := NewManager()
	batch := &wire.DataSyncBatch{Type: "Unknown", Updates: syncRecordsFromUUIDs([]string{"uuid-1"})}
	assert.NoError(t, mgr.SyncIncoming(batch, ""))
}
