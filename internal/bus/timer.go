package bus

import (
	"container/heap"
	"sync"
	"time"
)

// TimerHandle identifies a scheduled event for cancellation.
type TimerHandle uint64

type timerEvent struct {
	handle   TimerHandle
	deadline time.Time
	period   time.Duration
	periodic bool
	fn       func()
	index    int // heap.Interface bookkeeping
}

type timerHeap []*timerEvent

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *timerHeap) Push(x any) {
	e := x.(*timerEvent)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimerManager owns a single background goroutine that fires deadline-
// ordered events. register returns an opaque handle usable with Cancel.
// Periodic events reinsert themselves with deadline += period after firing.
type TimerManager struct {
	mu      sync.Mutex
	cond    *sync.Cond
	events  timerHeap
	byHandle map[TimerHandle]*timerEvent
	nextID  TimerHandle
	running bool
	done    chan struct{}

	// now is overridable for deterministic tests.
	now func() time.Time
}

// NewTimerManager creates and starts a TimerManager.
func NewTimerManager() *TimerManager {
	tm := &TimerManager{
		byHandle: make(map[TimerHandle]*timerEvent),
		running:  true,
		done:     make(chan struct{}),
		now:      time.Now,
	}
	tm.cond = sync.NewCond(&tm.mu)
	go tm.run()
	return tm
}

// Register schedules fn to run once at deadline and returns a cancellable
// handle.
func (tm *TimerManager) Register(deadline time.Time, fn func()) TimerHandle {
	return tm.insert(deadline, 0, false, fn)
}

// RegisterPeriodic schedules fn to run every period, starting at
// now()+period.
func (tm *TimerManager) RegisterPeriodic(period time.Duration, fn func()) TimerHandle {
	return tm.insert(tm.now().Add(period), period, true, fn)
}

func (tm *TimerManager) insert(deadline time.Time, period time.Duration, periodic bool, fn func()) TimerHandle {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.nextID++
	ev := &timerEvent{
		handle:   tm.nextID,
		deadline: deadline,
		period:   period,
		periodic: periodic,
		fn:       fn,
	}
	heap.Push(&tm.events, ev)
	tm.byHandle[ev.handle] = ev
	tm.cond.Broadcast()
	return ev.handle
}

// Cancel removes a still-pending event. It is a no-op if the handle has
// already fired (non-periodic) or was never registered.
func (tm *TimerManager) Cancel(handle TimerHandle) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	ev, ok := tm.byHandle[handle]
	if !ok {
		return
	}
	delete(tm.byHandle, handle)
	if ev.index >= 0 {
		heap.Remove(&tm.events, ev.index)
	}
	tm.cond.Broadcast()
}

// Stop halts the background goroutine and waits for it to exit.
func (tm *TimerManager) Stop() {
	tm.mu.Lock()
	tm.running = false
	tm.cond.Broadcast()
	tm.mu.Unlock()
	<-tm.done
}

func (tm *TimerManager) run() {
	defer close(tm.done)
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for tm.running {
		tm.fireDue()

		if len(tm.events) == 0 {
			tm.cond.Wait()
			continue
		}

		deadline := tm.events[0].deadline
		wait := deadline.Sub(tm.now())
		if wait <= 0 {
			continue
		}

		// Wake either when broadcast (new/cancelled event) or when the
		// earliest deadline elapses, whichever comes first.
		timer := time.AfterFunc(wait, func() {
			tm.mu.Lock()
			tm.cond.Broadcast()
			tm.mu.Unlock()
		})
		tm.cond.Wait()
		timer.Stop()
	}
}

// fireDue must be called with tm.mu held. It fires (and reinserts periodic)
// every event whose deadline has elapsed.
func (tm *TimerManager) fireDue() {
	now := tm.now()
	var due []*timerEvent
	for len(tm.events) > 0 && !tm.events[0].deadline.After(now) {
		ev := heap.Pop(&tm.events).(*timerEvent)
		delete(tm.byHandle, ev.handle)
		due = append(due, ev)
	}
	if len(due) == 0 {
		return
	}

	tm.mu.Unlock()
	for _, ev := range due {
		if ev.fn != nil {
			ev.fn()
		}
	}
	tm.mu.Lock()

	for _, ev := range due {
		if ev.periodic {
			ev.deadline = ev.deadline.Add(ev.period)
			ev.index = -1
			heap.Push(&tm.events, ev)
			tm.byHandle[ev.handle] = ev
		}
	}
}
