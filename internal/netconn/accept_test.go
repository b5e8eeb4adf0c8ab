package netconn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusmmo/core/internal/bus"
	"github.com/nexusmmo/core/internal/crypto"
)

func TestServerAssignsLeastBusyWorker(t *testing.T) {
	params, err := crypto.GenerateDHParams()
	require.NoError(t, err)

	w1 := bus.NewWorker("w1")
	w1.AddManager(NewPacketManager())
	w2 := bus.NewWorker("w2")
	w2.AddManager(NewPacketManager())
	w1.Start(false)
	w2.Start(false)
	defer func() { w1.Shutdown(); w2.Shutdown(); w1.Join(); w2.Join() }()

	w1.AssignConnection()
	w1.AssignConnection()

	srv := NewServer(StaticPool{w1, w2}, params)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer clientConn.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), w2.AssignmentCount(), "second connection should land on the less busy worker")
}
