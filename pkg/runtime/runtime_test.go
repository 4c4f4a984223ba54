package runtime

import (
	"testing"
	"time"

	"github.com/taskflow-go/taskflow/pkg/config"
	"github.com/taskflow-go/taskflow/pkg/future"
	"github.com/taskflow-go/taskflow/pkg/worker"
)

func TestRuntimeWiresTimerThroughWorkers(t *testing.T) {
	w := worker.New(worker.Config{WorkerCount: 1})
	w.Start()
	defer w.Shutdown()

	rt := New(config.DefaultConfig(), w)
	defer rt.Shutdown()

	done := make(chan struct{})
	rt.Timer.SetTimeout(func() { close(done) }, 10)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired through the runtime's worker pool")
	}
}

func TestRuntimeFuturesDispatchThroughWorkers(t *testing.T) {
	w := worker.New(worker.Config{WorkerCount: 1})
	w.Start()
	defer w.Shutdown()

	rt := New(config.DefaultConfig(), w)
	defer rt.Shutdown()

	fut := future.Spawn(rt.Futures, time.Second, func(publish func(int, error)) {
		publish(7, nil)
	})

	var v int
	var err error
	deadline := time.After(time.Second)
	for {
		v, err = fut.Poll()
		if err == nil {
			break
		}
		if err != future.ErrNotReady {
			t.Fatalf("unexpected poll error: %v", err)
		}
		select {
		case <-deadline:
			t.Fatal("future never resolved")
		case <-time.After(time.Millisecond):
		}
	}
	if v != 7 {
		t.Fatalf("got %d, want 7", v)
	}
}
