package netconn

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/nexusmmo/core/internal/bus"
)

// PacketHandler parses and acts on one command's arguments. args is the
// payload with the 2-byte command code already stripped.
type PacketHandler func(conn *Connection, args []byte) error

// PacketManager is the command-code keyed dispatcher (spec §4.6
// "ManagerPacket"): it owns every live Connection assigned to its worker
// and routes each KindPacket message to the registered handler for that
// connection's current state.
type PacketManager struct {
	mu          sync.Mutex
	connections map[uint64]*Connection
	handlers    map[uint16]PacketHandler

	// requireEncrypted lists command codes that may only be processed on an
	// encrypted connection; anything not listed is allowed at any state
	// once a connection is tracked (a handshake parser is never routed
	// through PacketManager — it runs inline in the Connection read loop).
	requireEncrypted map[uint16]bool

	// onEncrypted, if set, fires once a tracked connection finishes its
	// handshake. Used by a channel's world link to send its first packet,
	// and by a lobby's world listener to capture the world connection, only
	// once the connection can actually carry a packet.
	onEncrypted func(conn *Connection)
}

// NewPacketManager builds an empty dispatcher; handlers are added with
// Register before the owning Worker starts.
func NewPacketManager() *PacketManager {
	return &PacketManager{
		connections:      make(map[uint64]*Connection),
		handlers:         make(map[uint16]PacketHandler),
		requireEncrypted: make(map[uint16]bool),
	}
}

// OnEncrypted installs a callback fired whenever this manager observes a
// KindConnectionEncrypted message for one of its tracked connections.
func (m *PacketManager) OnEncrypted(fn func(conn *Connection)) {
	m.mu.Lock()
	m.onEncrypted = fn
	m.mu.Unlock()
}

// Register binds a command code to its handler. requireEncrypted rejects
// the command with a protocol error unless the connection has completed
// its handshake.
func (m *PacketManager) Register(code uint16, requireEncrypted bool, handler PacketHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[code] = handler
	m.requireEncrypted[code] = requireEncrypted
}

// Track adopts a connection into this manager's registry, called once the
// accept loop (or a dialing caller) assigns it to this manager's worker.
func (m *PacketManager) Track(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn.ID()] = conn
}

// Untrack drops a connection, called when a KindConnectionClosed message
// is observed for it.
func (m *PacketManager) Untrack(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, id)
}

// Lookup returns the tracked connection for id, if any.
func (m *PacketManager) Lookup(id uint64) (*Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	return conn, ok
}

// SupportedTypes implements bus.Manager.
func (m *PacketManager) SupportedTypes() []bus.Kind {
	return []bus.Kind{bus.KindPacket, bus.KindConnectionClosed, bus.KindConnectionEncrypted}
}

// Process implements bus.Manager: it routes KindPacket to the registered
// handler for its command code and reaps KindConnectionClosed.
func (m *PacketManager) Process(msg *bus.Message) error {
	switch msg.Kind {
	case bus.KindConnectionClosed:
		m.Untrack(msg.ConnectionID)
		return nil
	case bus.KindConnectionEncrypted:
		m.mu.Lock()
		fn := m.onEncrypted
		m.mu.Unlock()
		if fn != nil {
			if conn, ok := m.Lookup(msg.ConnectionID); ok {
				fn(conn)
			}
		}
		return nil
	case bus.KindPacket:
		return m.dispatch(msg)
	default:
		return fmt.Errorf("packet manager cannot process %s", msg.Kind)
	}
}

func (m *PacketManager) dispatch(msg *bus.Message) error {
	if len(msg.Packet) < 2 {
		return fmt.Errorf("packet from connection %d shorter than a command code", msg.ConnectionID)
	}
	code := binary.LittleEndian.Uint16(msg.Packet[0:2])
	args := msg.Packet[2:]

	conn, ok := m.Lookup(msg.ConnectionID)
	if !ok {
		return fmt.Errorf("packet for untracked connection %d", msg.ConnectionID)
	}

	m.mu.Lock()
	handler, ok := m.handlers[code]
	needsEncryption := m.requireEncrypted[code]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no handler registered for command %#04x", code)
	}
	if needsEncryption && conn.Status() != StatusEncrypted {
		return fmt.Errorf("command %#04x requires an encrypted connection, got %s", code, conn.Status())
	}

	if err := handler(conn, args); err != nil {
		return fmt.Errorf("handling command %#04x from connection %d: %w", code, msg.ConnectionID, err)
	}
	return nil
}
