package netconn

import (
	"fmt"
	"sync"
)

// Link holds the single persistent connection a channel keeps to world (or
// a lobby keeps to world) so that packet handlers elsewhere in the process
// can reach it to send unsolicited notifications, independent of the loop
// that owns the connection's lifetime. cmd/channel's connectToWorld sets
// its Link right after the handshake completes and clears it when the link
// drops; cmd/lobby sets its Link from the world listener's OnEncrypted
// callback and never clears it. cmd/world keeps no Link.
type Link struct {
	mu   sync.RWMutex
	conn *Connection
}

// NewLink builds an empty link holder.
func NewLink() *Link {
	return &Link{}
}

// Set installs conn as the current link connection, replacing any prior
// one.
func (l *Link) Set(conn *Connection) {
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
}

// Clear removes the current link connection if it is still conn (a stale
// dial loop that already reconnected must not clear the newer link).
func (l *Link) Clear(conn *Connection) {
	l.mu.Lock()
	if l.conn == conn {
		l.conn = nil
	}
	l.mu.Unlock()
}

// Get returns the current link connection, or nil if none is established.
func (l *Link) Get() *Connection {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conn
}

// Send writes payload over the current link connection, failing if none is
// established.
func (l *Link) Send(payload []byte) error {
	l.mu.RLock()
	conn := l.conn
	l.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("link is not connected")
	}
	return conn.SendPacket(payload, false)
}
