package netconn

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/nexusmmo/core/internal/bus"
	"github.com/nexusmmo/core/internal/crypto"
)

// WorkerPool is the subset of the worker pool the accept loop needs: enough
// to pick the least-busy worker and hand a new connection to it. Both
// lobby, world and channel processes satisfy this with their own
// bus.Worker slices.
type WorkerPool interface {
	Workers() []*bus.Worker
}

// StaticPool is the simplest WorkerPool: a fixed slice handed in at
// startup.
type StaticPool []*bus.Worker

func (p StaticPool) Workers() []*bus.Worker { return p }

// Server accepts TCP connections and assigns each one to the least-busy
// worker in pool, mirroring the teacher's accept loop but replacing its
// refcount-based load read (C++ shared_ptr::use_count()) with the explicit
// Worker.AssignmentCount() counter, since Go has no equivalent intrinsic.
type Server struct {
	pool   WorkerPool
	params *crypto.DHParams

	nextConnID atomic.Uint64

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds a Server that will distribute accepted connections
// across pool, using params as the shared DH parameters for every
// handshake it initiates.
func NewServer(pool WorkerPool, params *crypto.DHParams) *Server {
	return &Server{pool: pool, params: params}
}

// Addr returns the listening address, or nil before Run/Serve starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop against an already-bound listener, useful for
// tests that want an ephemeral port.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				wg.Wait()
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleAccepted(ctx, conn)
		}()
	}
}

// leastBusyWorker returns the worker with the smallest AssignmentCount.
func (s *Server) leastBusyWorker() (*bus.Worker, error) {
	workers := s.pool.Workers()
	if len(workers) == 0 {
		return nil, fmt.Errorf("no workers available to accept a connection")
	}
	best := workers[0]
	bestCount := best.AssignmentCount()
	for _, w := range workers[1:] {
		if c := w.AssignmentCount(); c < bestCount {
			best, bestCount = w, c
		}
	}
	return best, nil
}

func (s *Server) handleAccepted(ctx context.Context, conn net.Conn) {
	worker, err := s.leastBusyWorker()
	if err != nil {
		slog.Error("rejecting connection, no worker capacity", "remote", conn.RemoteAddr(), "error", err)
		conn.Close()
		return
	}

	m, ok := worker.Manager(bus.KindPacket)
	mgr, ok2 := m.(*PacketManager)
	if !ok || !ok2 {
		slog.Error("worker has no packet manager registered", "worker", worker.Name())
		conn.Close()
		return
	}

	id := s.nextConnID.Add(1)
	c := NewConnection(id, conn, RoleServer, s.params, worker.Queue())

	worker.AssignConnection()
	mgr.Track(c)

	if err := c.StartHandshake(); err != nil {
		slog.Error("handshake init failed", "remote", conn.RemoteAddr(), "error", err)
		worker.ReleaseConnection()
		c.Close(err)
		return
	}

	slog.Info("accepted connection", "remote", conn.RemoteAddr(), "worker", worker.Name(), "id", id)
	c.ReadLoop(ctx)
	worker.ReleaseConnection()
}
