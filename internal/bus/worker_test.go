package bus

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingManager struct {
	kinds     []Kind
	processed atomic.Int64
	fail      atomic.Bool
}

func (m *countingManager) SupportedTypes() []Kind { return m.kinds }
func (m *countingManager) Process(msg *Message) error {
	m.processed.Add(1)
	if m.fail.Load() {
		return errors.New("boom")
	}
	return nil
}

func TestWorkerDispatchesToRegisteredManager(t *testing.T) {
	w := NewWorker("test")
	mgr := &countingManager{kinds: []Kind{KindPacket}}
	w.AddManager(mgr)
	w.Start(false)
	defer func() {
		w.Shutdown()
		w.Join()
	}()

	w.Queue().Enqueue(&Message{Kind: KindPacket})

	require.Eventually(t, func() bool { return mgr.processed.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWorkerExecuteRunsInline(t *testing.T) {
	w := NewWorker("test")
	w.Start(false)
	defer func() {
		w.Shutdown()
		w.Join()
	}()

	ran := make(chan struct{})
	w.Queue().Enqueue(NewExecute(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("execute message never ran")
	}
}

func TestWorkerFailingManagerDoesNotStopWorker(t *testing.T) {
	w := NewWorker("test")
	mgr := &countingManager{kinds: []Kind{KindPacket}}
	mgr.fail.Store(true)
	w.AddManager(mgr)
	w.Start(false)
	defer func() {
		w.Shutdown()
		w.Join()
	}()

	w.Queue().Enqueue(&Message{Kind: KindPacket})
	w.Queue().Enqueue(&Message{Kind: KindPacket})

	require.Eventually(t, func() bool { return mgr.processed.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, w.IsRunning())
}

func TestWorkerPanicInManagerIsContained(t *testing.T) {
	w := NewWorker("test")
	w.AddManager(panicManager{})
	w.Start(false)
	defer func() {
		w.Shutdown()
		w.Join()
	}()

	w.Queue().Enqueue(&Message{Kind: KindPacket})

	ran := make(chan struct{})
	w.Queue().Enqueue(NewExecute(func() { close(ran) }))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker stopped processing after manager panic")
	}
	assert.True(t, w.IsRunning())
}

type panicManager struct{}

func (panicManager) SupportedTypes() []Kind { return []Kind{KindPacket} }
func (panicManager) Process(*Message) error { panic("kaboom") }

func TestWorkerShutdownStopsLoopAndDrainsQueue(t *testing.T) {
	w := NewWorker("test")
	w.Start(false)

	w.Queue().Enqueue(&Message{Kind: KindTick})
	w.Shutdown()
	w.Join()

	assert.False(t, w.IsRunning())
}

func TestWorkerAssignmentCount(t *testing.T) {
	w := NewWorker("test")
	assert.Equal(t, int64(0), w.AssignmentCount())
	w.AssignConnection()
	w.AssignConnection()
	assert.Equal(t, int64(2), w.AssignmentCount())
	w.ReleaseConnection()
	assert.Equal(t, int64(1), w.AssignmentCount())
}
