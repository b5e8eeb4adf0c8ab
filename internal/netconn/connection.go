// Package netconn implements the encrypted server-to-server/client
// connection (C4), the TCP accept loop (C5) and the packet manager (C6)
// described in spec §4.4-§4.6.
package netconn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/nexusmmo/core/internal/bus"
	"github.com/nexusmmo/core/internal/crypto"
	"github.com/nexusmmo/core/internal/wire"
)

// Role identifies which side of the handshake a Connection plays.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Status is the connection's position in the handshake state machine
// (spec §4.4):
//
//	disconnected -> connecting -> connected -> awaiting-encryption -> encrypted
//	                                                              \-> disconnected (on error)
//
// Only a server-role connection passes through awaiting-encryption; a
// client-role connection goes from connected straight to encrypted.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusAwaitingEncryption
	StatusEncrypted
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusAwaitingEncryption:
		return "awaiting-encryption"
	case StatusEncrypted:
		return "encrypted"
	default:
		return "unknown"
	}
}

// Connection owns one TCP socket, its receive buffer and outgoing queue. It
// is bound to exactly one bus.Queue (a Worker's queue) for its lifetime, so
// everything here except the outgoing-packet list is only ever touched by
// the single read goroutine and the owning worker — never concurrently.
type Connection struct {
	id     uint64
	conn   net.Conn
	role   Role
	params *crypto.DHParams

	mu          sync.Mutex
	status      Status
	keyPair     *crypto.DHKeyPair
	cipher      *crypto.BlowfishCipher
	outgoing    [][]byte
	sendInFlight bool

	queue *bus.Queue

	recvBuf *wire.Packet

	closeOnce sync.Once
}

// NewConnection wraps an accepted or dialed socket. params is the DH prime
// shared by the listening server (copied, not mutated, on handoff).
func NewConnection(id uint64, conn net.Conn, role Role, params *crypto.DHParams, queue *bus.Queue) *Connection {
	return &Connection{
		id:      id,
		conn:    conn,
		role:    role,
		params:  params,
		status:  StatusConnected,
		queue:   queue,
		recvBuf: wire.NewPacket(),
	}
}

// ID returns the connection's worker-local identifier.
func (c *Connection) ID() uint64 { return c.id }

// Role reports whether this connection plays the client or server side of
// the handshake.
func (c *Connection) Role() Role { return c.role }

// Status returns the current handshake state.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Connection) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Cipher returns the negotiated Blowfish cipher, or nil before the
// handshake completes.
func (c *Connection) Cipher() *crypto.BlowfishCipher {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cipher
}

// RemoteAddr returns the peer address, used for logging.
func (c *Connection) RemoteAddr() string {
	if c.conn == nil {
		return "<nil>"
	}
	return c.conn.RemoteAddr().String()
}

// QueuePacket appends a fully-built frame to the outgoing list under
// c.mu. The frame is flushed by the next FlushOutgoing call.
func (c *Connection) QueuePacket(frame []byte) {
	c.mu.Lock()
	c.outgoing = append(c.outgoing, frame)
	c.mu.Unlock()
}

// FlushOutgoing writes the next queued frame if no send is already in
// flight. While a send is in flight this is a no-op; the call that owns
// the in-flight send writes the remaining queued frames itself once its
// write completes, so queued frames eventually drain. If closeAfter is set, the connection is closed
// once the queue is empty.
func (c *Connection) FlushOutgoing(closeAfter bool) {
	c.mu.Lock()
	if c.sendInFlight {
		c.mu.Unlock()
		return
	}
	if len(c.outgoing) == 0 {
		c.mu.Unlock()
		if closeAfter {
			c.Close(nil)
		}
		return
	}
	frame := c.outgoing[0]
	c.outgoing = c.outgoing[1:]
	c.sendInFlight = true
	c.mu.Unlock()

	_, err := c.conn.Write(frame)

	c.mu.Lock()
	c.sendInFlight = false
	more := len(c.outgoing) > 0
	c.mu.Unlock()

	if err != nil {
		c.Close(fmt.Errorf("writing frame: %w", err))
		return
	}
	if more {
		c.FlushOutgoing(closeAfter)
	} else if closeAfter {
		c.Close(nil)
	}
}

// Close tears down the socket, cancelling any outstanding I/O, and emits a
// ConnectionClosed message on the bound queue exactly once. After this
// message is observed no further KindPacket messages for this connection
// will ever be produced.
func (c *Connection) Close(cause error) {
	c.closeOnce.Do(func() {
		c.setStatus(StatusDisconnected)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		if c.queue != nil {
			c.queue.Enqueue(&bus.Message{
				Kind:         bus.KindConnectionClosed,
				ConnectionID: c.id,
				Err:          cause,
			})
		}
	})
}

// ReadLoop runs on its own goroutine for the lifetime of the connection. It
// reads frames, decodes them per the current handshake phase, and enqueues
// the result on the bound worker queue. It returns once the connection is
// closed (by a read error, a protocol error, or ctx cancellation).
func (c *Connection) ReadLoop(ctx context.Context) {
	go func() {
		<-ctx.Done()
		c.Close(ctx.Err())
	}()

	for {
		if c.Status() == StatusDisconnected {
			return
		}

		msg, err := c.readOne()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Debug("connection read loop ending", "id", c.id, "remote", c.RemoteAddr(), "error", err)
			}
			c.Close(err)
			return
		}
		if msg != nil {
			c.queue.Enqueue(msg)
		}
	}
}

// readOne reads and interprets exactly one frame according to the current
// status, returning a message to enqueue (or nil if the frame was handled
// internally, e.g. a handshake step or a ping).
func (c *Connection) readOne() (*bus.Message, error) {
	switch c.Status() {
	case StatusConnected:
		return c.readHandshakeOrExtension()
	case StatusAwaitingEncryption:
		return c.readHandshakeFinish()
	case StatusEncrypted:
		return c.readPacket()
	default:
		return nil, fmt.Errorf("read on connection in state %s", c.Status())
	}
}
