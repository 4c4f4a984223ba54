// Package future adapts a callback-style task into a pollable handle
// with a timeout: Spawn dispatches a task that eventually publishes a
// (value, error) pair into a single-slot channel, and the returned
// FutTask's Poll method checks that channel without blocking.
//
// The reference design signals a timed-out poll by unwinding the
// polling thread (std::panic::resume_unwind). That is not how Go
// reports recoverable failure; Poll instead returns an ordinary error
// wrapping errors.ErrTimeout, exactly like any other FutTask outcome.
package future

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	taskflowerrors "github.com/taskflow-go/taskflow/pkg/errors"
	"github.com/taskflow-go/taskflow/pkg/task"
)

// Submitter is the subset of worker.Pool a Pool dispatches spawned
// work through.
type Submitter interface {
	Submit(typ task.Type, priority uint64, label string, thunk task.Thunk)
}

// InfraPriority is the priority every spawned future task dispatches
// at, deliberately far above any ordinary application priority so
// future infrastructure work is never starved by backlog.
const InfraPriority uint64 = 10_000_000

// ErrNotReady is returned by Poll when no result has been published
// yet and the deadline has not elapsed.
var ErrNotReady = errors.New("future: not ready")

type result[T any] struct {
	val T
	err error
}

// FutTask is a pollable handle for a single eventual (value, error)
// pair. The zero value is not valid; use Spawn.
type FutTask[T any] struct {
	uid      uint64
	deadline time.Time
	ch       chan result[T]
}

// UID returns the task's pool-assigned identifier.
func (f *FutTask[T]) UID() uint64 { return f.uid }

// Poll returns a KindFutureTimeout error once the deadline has elapsed;
// before that it returns the published value if one has arrived, or
// ErrNotReady if nothing has arrived yet. The deadline is checked
// first, so a result published after the deadline is never returned;
// it is left to be garbage collected with the channel.
func (f *FutTask[T]) Poll() (T, error) {
	var zero T
	if time.Now().After(f.deadline) {
		return zero, taskflowerrors.New(taskflowerrors.KindFutureTimeout, "poll", taskflowerrors.ErrTimeout)
	}

	select {
	case r, ok := <-f.ch:
		if !ok {
			return zero, taskflowerrors.New(taskflowerrors.KindChannelDisconnected, "poll", taskflowerrors.ErrDisconnected)
		}
		return r.val, r.err
	default:
	}
	return zero, ErrNotReady
}

// Pool dispatches spawned future work through a Submitter and assigns
// each FutTask a monotonically increasing uid.
type Pool struct {
	counter   atomic.Uint64
	submitter Submitter
}

// NewPool builds a Pool dispatching through submitter. A nil submitter
// runs spawned work inline on the calling goroutine, matching the
// standalone mode asyncfile and timingwheel also support.
func NewPool(submitter Submitter) *Pool {
	return &Pool{submitter: submitter}
}

// Count returns the number of tasks ever spawned from this pool.
func (p *Pool) Count() uint64 { return p.counter.Load() }

// Spawn dispatches work as a task at InfraPriority and returns a
// FutTask that times out after timeout if work never calls publish.
// work receives a publish function it must call at most once; calling
// it more than once after the first call is a caller bug (the channel
// is single-slot and the second call blocks forever if unbuffered
// capacity is exhausted, so implementations should call publish
// exactly once on every path).
//
// Spawn is a free function rather than a *Pool method because Go does
// not allow a method to introduce type parameters beyond its
// receiver's.
func Spawn[T any](p *Pool, timeout time.Duration, work func(publish func(T, error))) *FutTask[T] {
	uid := p.counter.Add(1) - 1
	ch := make(chan result[T], 1)
	publish := func(v T, err error) {
		ch <- result[T]{val: v, err: err}
	}

	label := fmt.Sprintf("%d future task", uid)
	thunk := func() { work(publish) }
	submit(p.submitter, InfraPriority, label, thunk)

	return &FutTask[T]{uid: uid, deadline: time.Now().Add(timeout), ch: ch}
}

func submit(sub Submitter, priority uint64, label string, fn task.Thunk) {
	if sub == nil {
		fn()
		return
	}
	sub.Submit(task.Sync, priority, label, fn)
}
