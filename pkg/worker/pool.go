// Package worker provides the fixed-size worker pool that drains a
// taskpool.Pool. Unlike a channel-fanout pool, dispatch is driven by a
// single mutex/condvar pair shared by every worker and every submitter:
// a worker blocks on the condvar only while the pool is empty, pops
// under the same lock that guards pushes, and releases the lock before
// running the task. This keeps the priority-ordering decision atomic
// at the cost of one shared lock, which the reference design accepts
// deliberately.
package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskflow-go/taskflow/pkg/logging"
	"github.com/taskflow-go/taskflow/pkg/task"
	"github.com/taskflow-go/taskflow/pkg/taskpool"
)

// State is a Worker's lifecycle stage.
type State int32

const (
	Free State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// OverloadEvent is an observational, non-fatal diagnostic recorded when a
// task ran longer than the pool's slack budget or the queue grew past
// its configured maximum.
type OverloadEvent struct {
	WorkerID   int
	TaskLabel  string
	Elapsed    time.Duration
	QueueLen   int
	SlackBlown bool
	QueueBlown bool
}

// OverloadReporter receives overload diagnostics as they occur. Must be
// non-blocking.
type OverloadReporter func(OverloadEvent)

// Config configures a Pool.
type Config struct {
	// WorkerCount is the number of worker goroutines to run. Defaults to
	// 1 if <= 0.
	WorkerCount int

	// FreeListCapacity sizes the underlying taskpool.Pool's free-list.
	// Defaults to 10, matching the reference singleton binding's
	// init-at-first-use default.
	FreeListCapacity int

	// Slack is the per-task execution budget; tasks that run longer
	// trip an overload event. Zero disables the slack check.
	Slack time.Duration

	// MaxQueueLen is the pending-task count beyond which popping a task
	// trips an overload event. Zero disables the queue-length check.
	MaxQueueLen int

	// Overload receives overload diagnostics. May be nil.
	Overload OverloadReporter

	// Logger receives overload log lines. Defaults to a
	// component logger over logging.GetGlobalLogger().
	Logger *logging.Logger
}

// Pool is a fixed set of Workers draining a single taskpool.Pool under a
// shared mutex/condvar pair.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	pool     *taskpool.Pool
	workers  []*Worker
	slack    time.Duration
	maxQueue int
	overload OverloadReporter
	log      *logging.Logger

	stopping bool

	submitted atomic.Int64
	completed atomic.Int64
	overloads atomic.Int64
}

// Worker is one cooperating thread servicing a Pool.
type Worker struct {
	id    int
	pool  *Pool
	state atomic.Int32
}

// ID returns the worker's index within its Pool.
func (w *Worker) ID() int { return w.id }

// State returns the worker's current lifecycle stage.
func (w *Worker) State() State { return State(w.state.Load()) }

// New builds a Pool and its Workers in the Free state. Call Start to
// begin servicing the pool.
func New(config Config) *Pool {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.FreeListCapacity <= 0 {
		config.FreeListCapacity = 10
	}
	if config.Logger == nil {
		config.Logger = logging.GetGlobalLogger().WithComponent("worker")
	}

	p := &Pool{
		pool:     taskpool.New(config.FreeListCapacity),
		slack:    config.Slack,
		maxQueue: config.MaxQueueLen,
		overload: config.Overload,
		log:      config.Logger,
	}
	p.cond = sync.NewCond(&p.mu)

	p.workers = make([]*Worker, config.WorkerCount)
	for i := range p.workers {
		p.workers[i] = &Worker{id: i, pool: p}
	}

	return p
}

// Start binds every Worker to the pool's (mutex, condvar) pair and
// launches its dispatch loop.
func (p *Pool) Start() {
	for _, w := range p.workers {
		w.state.Store(int32(Running))
		go w.loop()
	}
}

// Submit pushes a thunk of the given type/priority/label onto the
// underlying taskpool and wakes exactly one waiting worker.
func (p *Pool) Submit(typ task.Type, priority uint64, label string, thunk task.Thunk) {
	p.mu.Lock()
	p.pool.Push(typ, priority, thunk, label)
	p.submitted.Add(1)
	p.mu.Unlock()
	p.cond.Signal()
}

// Shutdown sets the stopping flag and broadcasts the condvar so every
// worker observes it at its next wait boundary. Tasks already popped run
// to completion; Shutdown does not wait for them — callers that need
// that guarantee should track completion externally (e.g. via a
// future.Pool).
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Stats is a snapshot of pool-wide counters.
type Stats struct {
	Submitted int64
	Completed int64
	Overloads int64
	Pending   int
}

// Stats returns a point-in-time snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	pending := p.pool.Len()
	p.mu.Unlock()

	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Overloads: p.overloads.Load(),
		Pending:   pending,
	}
}

func (w *Worker) loop() {
	p := w.pool

	for {
		p.mu.Lock()
		for p.pool.Len() == 0 && !p.stopping {
			p.cond.Wait()
		}
		if p.stopping {
			p.mu.Unlock()
			w.state.Store(int32(Stopped))
			return
		}

		t, ok := p.pool.Pop(task.AllTypes)
		queueLen := p.pool.Len()
		p.mu.Unlock()

		if !ok {
			// Lost the race to another worker; loop back to wait.
			continue
		}

		start := time.Now()
		label := t.Label()
		t.Run()
		elapsed := time.Since(start)

		p.mu.Lock()
		p.pool.Recycle(t)
		p.mu.Unlock()

		p.completed.Add(1)

		slackBlown := p.slack > 0 && elapsed > p.slack
		queueBlown := p.maxQueue > 0 && queueLen > p.maxQueue
		if slackBlown || queueBlown {
			p.overloads.Add(1)
			p.log.Warnf("overload: worker=%d label=%s elapsed=%s queue=%d", w.id, label, elapsed, queueLen)
			if p.overload != nil {
				p.overload(OverloadEvent{
					WorkerID:   w.id,
					TaskLabel:  label,
					Elapsed:    elapsed,
					QueueLen:   queueLen,
					SlackBlown: slackBlown,
					QueueBlown: queueBlown,
				})
			}
		}
	}
}
