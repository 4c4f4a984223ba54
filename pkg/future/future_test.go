package future

import (
	"fmt"
	"sync"
	"testing"
	"time"

	taskflowerrors "github.com/taskflow-go/taskflow/pkg/errors"
	"github.com/taskflow-go/taskflow/pkg/task"
)

// backgroundSubmitter runs each thunk on its own goroutine, standing
// in for a worker.Pool without this package importing it.
type backgroundSubmitter struct{}

func (backgroundSubmitter) Submit(_ task.Type, _ uint64, _ string, thunk task.Thunk) { go thunk() }

func TestPollReturnsValueOnceReady(t *testing.T) {
	pool := NewPool(nil) // nil submitter: work runs inline, synchronously
	fut := Spawn(pool, time.Second, func(publish func(int, error)) {
		publish(42, nil)
	})

	v, err := fut.Poll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestPollBeforeResultIsNotReady(t *testing.T) {
	var release sync.WaitGroup
	release.Add(1)

	pool := &poolWithGoroutine{}
	fut := Spawn(pool.pool(), time.Second, func(publish func(int, error)) {
		release.Wait()
		publish(1, nil)
	})

	_, err := fut.Poll()
	if err != ErrNotReady {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	release.Done()
	deadline := time.After(time.Second)
	for {
		if v, err := fut.Poll(); err == nil {
			if v != 1 {
				t.Fatalf("got %d, want 1", v)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("result never arrived")
		case <-time.After(time.Millisecond):
		}
	}
}

// poolWithGoroutine dispatches work onto its own goroutine so a
// caller can Poll before the work completes.
type poolWithGoroutine struct{}

func (poolWithGoroutine) pool() *Pool { return NewPool(backgroundSubmitter{}) }

func TestTimeoutSurfacesAsOrdinaryError(t *testing.T) {
	// Scenario S6: spawn with a 20ms timeout against work that takes
	// 100ms; poll after 30ms surfaces a timeout error, not a panic.
	pool := NewPool(backgroundSubmitter{})
	var published int32

	fut := Spawn(pool, 20*time.Millisecond, func(publish func(int, error)) {
		time.Sleep(100 * time.Millisecond)
		published = 1
		publish(99, nil)
	})

	time.Sleep(30 * time.Millisecond)
	_, err := fut.Poll()
	if !taskflowerrors.Is(err, taskflowerrors.KindFutureTimeout) {
		t.Fatalf("expected a future-timeout error, got %v", err)
	}

	// The late result must be silently discarded: polling again after
	// it eventually lands must not resurrect it as a success.
	time.Sleep(150 * time.Millisecond)
	if published != 1 {
		t.Fatal("expected the slow work to have run to completion")
	}
	if _, err := fut.Poll(); !taskflowerrors.Is(err, taskflowerrors.KindFutureTimeout) {
		t.Fatalf("expected the late result to remain a timeout on re-poll, got %v", err)
	}
}

func TestPollSurfacesPublishedError(t *testing.T) {
	pool := NewPool(nil)
	boom := fmt.Errorf("boom")
	fut := Spawn(pool, time.Second, func(publish func(int, error)) {
		publish(0, boom)
	})

	_, err := fut.Poll()
	if err != boom {
		t.Fatalf("expected the published error to surface verbatim, got %v", err)
	}
}

func TestSpawnAssignsIncrementingUIDs(t *testing.T) {
	pool := NewPool(nil)
	first := Spawn(pool, time.Second, func(publish func(int, error)) { publish(0, nil) })
	second := Spawn(pool, time.Second, func(publish func(int, error)) { publish(0, nil) })

	if second.UID() != first.UID()+1 {
		t.Fatalf("expected incrementing uids, got %d then %d", first.UID(), second.UID())
	}
	if pool.Count() != 2 {
		t.Fatalf("expected pool count 2, got %d", pool.Count())
	}
}
