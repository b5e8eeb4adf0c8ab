package netconn

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusmmo/core/internal/bus"
	"github.com/nexusmmo/core/internal/crypto"
)

func newTrackedConnection(t *testing.T, mgr *PacketManager, id uint64) *Connection {
	t.Helper()
	params, err := crypto.GenerateDHParams()
	require.NoError(t, err)
	side, _ := net.Pipe()
	conn := NewConnection(id, side, RoleServer, params, bus.NewQueue())
	mgr.Track(conn)
	return conn
}

func TestPacketManagerDispatchesByCommandCode(t *testing.T) {
	mgr := NewPacketManager()
	var got []byte
	mgr.Register(0x1234, false, func(conn *Connection, args []byte) error {
		got = args
		return nil
	})
	conn := newTrackedConnection(t, mgr, 1)

	payload := make([]byte, 2+3)
	binary.LittleEndian.PutUint16(payload[0:2], 0x1234)
	copy(payload[2:], []byte{9, 8, 7})

	err := mgr.Process(&bus.Message{Kind: bus.KindPacket, ConnectionID: conn.ID(), Packet: payload})
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7}, got)
}

func TestPacketManagerRejectsUnencryptedWhenRequired(t *testing.T) {
	mgr := NewPacketManager()
	called := false
	mgr.Register(0x01, true, func(conn *Connection, args []byte) error {
		called = true
		return nil
	})
	conn := newTrackedConnection(t, mgr, 1)
	assert.Equal(t, StatusConnected, conn.Status())

	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, 0x01)

	err := mgr.Process(&bus.Message{Kind: bus.KindPacket, ConnectionID: conn.ID(), Packet: payload})
	require.Error(t, err)
	assert.False(t, called)
}

func TestPacketManagerErrorsOnUnknownCommand(t *testing.T) {
	mgr := NewPacketManager()
	conn := newTrackedConnection(t, mgr, 1)

	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, 0xFFFF)

	err := mgr.Process(&bus.Message{Kind: bus.KindPacket, ConnectionID: conn.ID(), Packet: payload})
	assert.Error(t, err)
}

func TestPacketManagerUntracksOnClose(t *testing.T) {
	mgr := NewPacketManager()
	conn := newTrackedConnection(t, mgr, 1)

	require.NoError(t, mgr.Process(&bus.Message{Kind: bus.KindConnectionClosed, ConnectionID: conn.ID()}))
	_, ok := mgr.Lookup(conn.ID())
	assert.False(t, ok)
}
