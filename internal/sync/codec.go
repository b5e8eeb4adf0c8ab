package sync

import (
	"fmt"

	"github.com/nexusmmo/core/internal/wire"
)

// encodeDataSyncPacketFor wraps batch in a full command-coded packet ready
// for Connection.SendPacket.
func encodeDataSyncPacketFor(batch *wire.DataSyncBatch, isPersistent bool) ([]byte, error) {
	p := wire.NewPacket()
	if err := p.WriteU16LE(wire.PacketDataSync); err != nil {
		return nil, err
	}
	if err := batch.Encode(p, isPersistent); err != nil {
		return nil, fmt.Errorf("encoding data sync batch: %w", err)
	}
	return p.Bytes(), nil
}

// DecodeIncoming reads a PacketDataSync payload (command code already
// stripped, e.g. the args a netconn.PacketHandler receives) into a batch,
// consulting the manager's registered types to know whether the batch's
// records are persistent (UUID) or non-persistent (datastream) encoded.
func (m *Manager) DecodeIncoming(args []byte) (*wire.DataSyncBatch, error) {
	p := wire.NewPacketFromBytes(args)

	typeName, err := wire.PeekDataSyncType(p)
	if err != nil {
		return nil, fmt.Errorf("peeking sync batch type: %w", err)
	}

	m.mu.Lock()
	cfg, ok := m.types[typeName]
	m.mu.Unlock()
	isPersistent := ok && cfg.Persistent

	return wire.DecodeDataSyncBatch(p, isPersistent)
}
