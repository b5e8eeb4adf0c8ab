package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Worker is a single-threaded cooperative event loop bound to one Queue. It
// owns a kind -> Manager mapping and dispatches every dequeued message to
// the manager registered for its Kind. KindExecute messages run their
// closure directly instead of going through a Manager; KindShutdown stops
// the loop after being observed.
//
// A Worker is the unit of affinity for Connections: a connection assigned
// to a Worker never moves, so per-connection state needs no locking as long
// as it is only touched from messages processed by that Worker.
type Worker struct {
	name     string
	queue    *Queue
	managers map[Kind]Manager

	running atomic.Bool
	done    chan struct{}

	// assigned approximates "how many connections are bound here". Go has
	// no shared_ptr use_count to read, so the accept loop increments this
	// explicitly via AssignConnection/ReleaseConnection instead.
	assigned atomic.Int64

	startOnce sync.Once
}

// NewWorker creates a worker with its own queue and no managers registered.
func NewWorker(name string) *Worker {
	return &Worker{
		name:     name,
		queue:    NewQueue(),
		managers: make(map[Kind]Manager),
		done:     make(chan struct{}),
	}
}

// AddManager registers manager for every Kind it declares support for.
// Must be called before Start.
func (w *Worker) AddManager(manager Manager) {
	for _, k := range manager.SupportedTypes() {
		w.managers[k] = manager
	}
}

// Queue returns the worker's message queue so producers (connections, the
// timer manager, other workers) can enqueue work for it.
func (w *Worker) Queue() *Queue {
	return w.queue
}

// Manager returns the manager registered for kind, if any. Used by an
// accept loop to reach the packet manager bound to a given worker.
func (w *Worker) Manager(kind Kind) (Manager, bool) {
	m, ok := w.managers[kind]
	return m, ok
}

// Name returns the worker's diagnostic name.
func (w *Worker) Name() string {
	return w.name
}

// AssignConnection records that one more connection is bound to this
// worker. Used by the accept loop's least-busy selection.
func (w *Worker) AssignConnection() {
	w.assigned.Add(1)
}

// ReleaseConnection records that a previously assigned connection is gone.
func (w *Worker) ReleaseConnection() {
	w.assigned.Add(-1)
}

// AssignmentCount approximates load as the number of connections currently
// bound to this worker.
func (w *Worker) AssignmentCount() int64 {
	return w.assigned.Load()
}

// Start runs the worker loop. If blocking is true, Start runs inline on the
// calling goroutine (used for the "main" worker of single-threaded-mode
// processes); otherwise it spawns its own goroutine and returns
// immediately.
func (w *Worker) Start(blocking bool) {
	w.running.Store(true)
	if blocking {
		w.loop()
		return
	}
	go w.loop()
}

func (w *Worker) loop() {
	defer func() {
		w.queue.Close() // drain and discard anything left unprocessed
		close(w.done)
	}()
	for w.running.Load() {
		msgs := w.queue.DequeueAll()
		if msgs == nil {
			// Queue was closed with nothing left to drain.
			return
		}
		for _, m := range msgs {
			if m.Kind == KindShutdown || !w.running.Load() {
				w.running.Store(false)
				break
			}
			w.dispatch(m)
		}
	}
}

func (w *Worker) dispatch(m *Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker manager panicked, dropping message",
				"worker", w.name, "kind", m.Kind, "panic", fmt.Sprint(r))
		}
	}()

	if m.Kind == KindExecute {
		if m.Execute != nil {
			m.Execute()
		}
		return
	}

	manager, ok := w.managers[m.Kind]
	if !ok {
		slog.Error("unhandled message kind", "worker", w.name, "kind", m.Kind)
		return
	}
	if err := manager.Process(m); err != nil {
		slog.Error("manager failed to process message",
			"worker", w.name, "kind", m.Kind, "error", err)
	}
}

// Shutdown enqueues a shutdown message and returns immediately; callers
// must call Join separately to wait for the loop to actually stop.
func (w *Worker) Shutdown() {
	w.queue.Enqueue(NewShutdown())
}

// Join blocks until the worker loop has stopped.
func (w *Worker) Join() {
	<-w.done
}

// IsRunning reports whether the worker loop is still processing messages.
func (w *Worker) IsRunning() bool {
	return w.running.Load()
}
