package netconn

import (
	"fmt"
	"sync"
)

// ChannelDirectory maps a channel id to the connection World accepted for
// that channel's registration link, so a handler resolving
// wire.RelayEnvelope's per-channel cid groups (spec §6, §4.9
// "SendToRelated") can find a connection to write to. Populated by the
// PacketChannelAnnounce handler right after a channel connects.
//
// Disconnect cleanup is a deliberate simplification: a stale entry is only
// ever overwritten by the same channel's next reconnect announcement, never
// proactively removed, so a relay attempted in the narrow window between a
// channel dying and its reconnect will fail at SendPacket rather than at
// lookup.
type ChannelDirectory struct {
	mu   sync.RWMutex
	byID map[int8]*Connection
}

// NewChannelDirectory builds an empty directory.
func NewChannelDirectory() *ChannelDirectory {
	return &ChannelDirectory{byID: make(map[int8]*Connection)}
}

// Announce records conn as the current connection for channelID.
func (d *ChannelDirectory) Announce(channelID int8, conn *Connection) {
	d.mu.Lock()
	d.byID[channelID] = conn
	d.mu.Unlock()
}

// Lookup returns the connection currently on file for channelID.
func (d *ChannelDirectory) Lookup(channelID int8) (*Connection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[channelID]
	return c, ok
}

// Send writes payload to the connection on file for channelID.
func (d *ChannelDirectory) Send(channelID int8, payload []byte) error {
	conn, ok := d.Lookup(channelID)
	if !ok {
		return fmt.Errorf("no connection registered for channel %d", channelID)
	}
	return conn.SendPacket(payload, false)
}
