// Package timingwheel implements the hashed timing wheel that schedules
// delayed callbacks and dispatches them onto a task submitter (typically
// a worker.Pool) once their deadline elapses. A "zero bucket" holds
// zero-delay entries and is drained every driver cycle ahead of any
// tick-bucketed entry, so immediate callbacks never wait a full tick.
package timingwheel

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/taskflow-go/taskflow/pkg/task"
)

// Submitter is the subset of worker.Pool the wheel dispatches expired
// callbacks through. Declared locally (rather than importing worker) so
// the wheel can also be driven standalone against a caller's own
// executor, or even synchronously in tests.
type Submitter interface {
	Submit(typ task.Type, priority uint64, label string, thunk task.Thunk)
}

// entry is one scheduled callback. fired is CAS'd exactly once, by
// whichever of {cancel, dispatch} gets there first, so a cancelled
// handle is never executed and an executed handle can never be
// cancelled after the fact.
type entry struct {
	thunk    task.Thunk
	deadline int64 // absolute wheel-time milliseconds
	fired    atomic.Bool
}

// Handle identifies a scheduled entry for cancellation. The zero Handle
// is not valid; only Timer.SetTimeout constructs one.
type Handle struct {
	e *entry
}

// Stats mirrors the reference design's relaxed-atomic counters.
type Stats struct {
	AllCount    int64
	CancelCount int64
	RunCount    int64
	RunTimeMS   int64
}

// Timer is a hashed timing wheel driven by its own goroutine once Run is
// called.
type Timer struct {
	mu      sync.Mutex
	buckets map[int64][]*entry // keyed by the tick boundary a deadline rounds up to
	zero    []*entry

	tickMs          int64
	wheelTime       int64 // virtual wheel clock, ms, always a multiple established at first Run
	started         bool
	stop            chan struct{}
	defaultPriority uint64
	submitter       Submitter

	allCount    atomic.Int64
	cancelCount atomic.Int64
	runCount    atomic.Int64
	runTimeMS   atomic.Int64

	now func() int64 // overridable for tests
}

// New builds a Timer with the given tick period (clamped to a minimum
// of 10ms, per spec) that dispatches expired callbacks to submitter at
// defaultPriority unless the caller overrides priority per entry via
// SetTimeoutPriority.
func New(tickMs int64, submitter Submitter, defaultPriority uint64) *Timer {
	if tickMs < 10 {
		tickMs = 10
	}
	return &Timer{
		buckets:         make(map[int64][]*entry),
		tickMs:          tickMs,
		submitter:       submitter,
		defaultPriority: defaultPriority,
		stop:            make(chan struct{}),
		now:             nowMillis,
	}
}

func nowMillis() int64 { return time.Now().UnixNano() / int64(time.Millisecond) }

// SetTimeout inserts thunk to run after delayMs, dispatched at the
// Timer's default priority.
func (t *Timer) SetTimeout(thunk task.Thunk, delayMs int64) Handle {
	return t.SetTimeoutPriority(thunk, delayMs, t.defaultPriority, "timer")
}

// SetTimeoutPriority inserts thunk to run after delayMs, dispatched at
// the given priority and label.
func (t *Timer) SetTimeoutPriority(thunk task.Thunk, delayMs int64, priority uint64, label string) Handle {
	t.allCount.Inc()

	e := &entry{thunk: wrapDispatch(t, thunk, priority, label)}

	t.mu.Lock()
	defer t.mu.Unlock()

	if delayMs <= 0 {
		t.zero = append(t.zero, e)
		return Handle{e: e}
	}

	deadline := t.now() + delayMs
	slot := t.slotFor(deadline)
	e.deadline = deadline
	t.buckets[slot] = append(t.buckets[slot], e)

	return Handle{e: e}
}

// slotFor rounds deadline up to the next tick boundary relative to the
// wheel's current time, guaranteeing the entry fires at wall-clock time
// >= its requested deadline (invariant ii, spec §4.F/§8).
func (t *Timer) slotFor(deadline int64) int64 {
	if t.tickMs <= 0 {
		return deadline
	}
	rem := (deadline - t.wheelTime) % t.tickMs
	if rem == 0 {
		return deadline
	}
	return deadline + (t.tickMs - rem)
}

// wrapDispatch returns a thunk that submits the caller's thunk through
// the submitter, or (if none was configured) runs it directly — the
// standalone mode spec.md §4.F describes as an equivalent alternative to
// dispatching through a task pool.
func wrapDispatch(t *Timer, thunk task.Thunk, priority uint64, label string) task.Thunk {
	return func() {
		if t.submitter == nil {
			thunk()
			return
		}
		t.submitter.Submit(task.Sync, priority, label, thunk)
	}
}

// Cancel atomically removes handle's entry. Returns false if the entry
// has already fired (or was already cancelled).
func (t *Timer) Cancel(h Handle) bool {
	if h.e == nil {
		return false
	}
	if h.e.fired.CompareAndSwap(false, true) {
		t.cancelCount.Inc()
		return true
	}
	return false
}

// Stats returns a snapshot of the wheel's counters.
func (t *Timer) Stats() Stats {
	return Stats{
		AllCount:    t.allCount.Load(),
		CancelCount: t.cancelCount.Load(),
		RunCount:    t.runCount.Load(),
		RunTimeMS:   t.runTimeMS.Load(),
	}
}

// Run starts the driver goroutine. Calling Run twice is a no-op.
func (t *Timer) Run() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.wheelTime = t.now()
	t.mu.Unlock()

	go t.drive()
}

// Stop halts the driver goroutine. Entries already fired are unaffected;
// pending entries are simply never dispatched.
func (t *Timer) Stop() {
	close(t.stop)
}

func (t *Timer) drive() {
	sleep := t.tickMs
	for {
		select {
		case <-t.stop:
			return
		case <-time.After(time.Duration(sleep) * time.Millisecond):
		}

		now := t.now()
		now = t.runZero(now)

		for {
			t.mu.Lock()
			if now < t.wheelTime+t.tickMs {
				t.mu.Unlock()
				break
			}
			t.wheelTime += t.tickMs
			due := t.buckets[t.wheelTime]
			delete(t.buckets, t.wheelTime)
			t.mu.Unlock()

			now = t.runEntries(due, now)
			now = t.runZero(now)
		}

		sleep = t.wheelTime + t.tickMs - now
		if sleep < 0 {
			sleep = 0
		}
	}
}

// runZero drains the zero bucket repeatedly: a thunk dispatched from a
// zero-delay entry may itself schedule another zero-delay entry, and the
// reference design keeps draining until the bucket is empty rather than
// deferring fresh zero entries to the next cycle.
func (t *Timer) runZero(now int64) int64 {
	for {
		t.mu.Lock()
		if len(t.zero) == 0 {
			t.mu.Unlock()
			break
		}
		batch := t.zero
		t.zero = nil
		t.mu.Unlock()

		now = t.runEntries(batch, now)
	}
	return now
}

func (t *Timer) runEntries(entries []*entry, old int64) int64 {
	ran := 0
	for _, e := range entries {
		if !e.fired.CompareAndSwap(false, true) {
			continue // cancelled before dispatch
		}
		e.thunk()
		ran++
	}
	if ran > 0 {
		t.runCount.Add(int64(ran))
	}
	now := t.now()
	t.runTimeMS.Add(now - old)
	return now
}
