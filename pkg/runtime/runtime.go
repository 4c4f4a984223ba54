// Package runtime threads taskflow's process-wide components —
// worker pool, timing wheel, future pool, logger — through one
// explicit handle instead of the reference design's lazy_static
// globals. Go has no equivalent of Rust's lazy_static! macro, and a
// package-level var holding a *worker.Pool would force every
// process using this module to share one configuration; a Runtime
// lets a caller construct as many independently configured instances
// as it needs (e.g. one per test, one per tenant).
package runtime

import (
	"time"

	"github.com/taskflow-go/taskflow/pkg/config"
	"github.com/taskflow-go/taskflow/pkg/future"
	"github.com/taskflow-go/taskflow/pkg/logging"
	"github.com/taskflow-go/taskflow/pkg/task"
	"github.com/taskflow-go/taskflow/pkg/timingwheel"
)

// Runtime bundles the worker pool, timing wheel, and future pool that
// together service priority-scheduled work, delayed callbacks, and
// pollable futures against one shared submitter.
type Runtime struct {
	Config  *config.Config
	Logger  *logging.Logger
	Workers submitter
	Timer   *timingwheel.Timer
	Futures *future.Pool
}

// submitter is satisfied structurally by *worker.Pool. Declared
// locally so this package never imports worker, matching the pattern
// timingwheel, asyncfile, sharedfile, and future already use for the
// same reason: the dispatch target is a capability, not a concrete
// type.
type submitter interface {
	Submit(typ task.Type, priority uint64, label string, thunk task.Thunk)
}

// New builds a Runtime's Timer and Futures pool wired to submit
// through workers, using cfg for tick period, default priorities, and
// future timeout. Workers itself is constructed by the caller (see
// cmd/taskflow-demo for the typical worker.New(...); workers.Start()
// sequence) and passed in here, since the worker package depends on
// neither the timer nor the future pool and this package must not
// import worker to avoid the reverse dependency.
func New(cfg *config.Config, workers submitter) *Runtime {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	logger := logging.GetGlobalLogger().WithComponent("runtime")

	timer := timingwheel.New(cfg.Timer.TickMillis, workers, uint64(cfg.Timer.DefaultPriority))
	timer.Run()

	futures := future.NewPool(workers)

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Workers: workers,
		Timer:   timer,
		Futures: futures,
	}
}

// Shutdown stops the Runtime's timing wheel. The caller owns Workers'
// lifecycle (worker.Pool.Shutdown) separately, since Runtime never
// constructed it.
func (r *Runtime) Shutdown() {
	r.Timer.Stop()
}

// FutureTimeout returns the Runtime's configured default future
// timeout, for callers that don't want to pick their own per spawn.
func (r *Runtime) FutureTimeout() time.Duration {
	return r.Config.Future.DefaultTimeout
}
