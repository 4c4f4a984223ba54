// Command taskflow-demo exercises the library end to end: it loads
// configuration, starts a worker pool and a runtime (timing wheel +
// future pool) on top of it, writes and reads back a temp file
// through the async file engine, schedules a delayed callback, and
// spawns a future — logging each step through the shared logger.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taskflow-go/taskflow/pkg/asyncfile"
	"github.com/taskflow-go/taskflow/pkg/config"
	"github.com/taskflow-go/taskflow/pkg/future"
	"github.com/taskflow-go/taskflow/pkg/logging"
	taskflowruntime "github.com/taskflow-go/taskflow/pkg/runtime"
	"github.com/taskflow-go/taskflow/pkg/worker"
)

func main() {
	configPath := flag.String("config", "", "path to a taskflow config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "taskflow-demo: config:", err)
		os.Exit(1)
	}

	logging.InitGlobalLogger(&logging.Config{
		Level:  logLevelFromString(cfg.Logging.Level),
		Format: logging.TextFormat,
		Output: os.Stdout,
	})
	log := logging.GetGlobalLogger().WithComponent("taskflow-demo")

	pool := worker.New(worker.Config{
		WorkerCount: cfg.Worker.Count,
		Slack:       time.Duration(cfg.Worker.SlackBudget) * time.Millisecond,
		MaxQueueLen: cfg.Worker.MaxQueueLen,
		Overload: func(e worker.OverloadEvent) {
			log.Warnf("overload: worker=%d label=%s elapsed=%s", e.WorkerID, e.TaskLabel, e.Elapsed)
		},
	})
	pool.Start()
	defer pool.Shutdown()

	rt := taskflowruntime.New(cfg, pool)
	defer rt.Shutdown()

	runFileDemo(pool, log)
	runTimerDemo(rt, log)
	runFutureDemo(rt, log)

	log.Infof("demo complete; pool stats: %+v", pool.Stats())
}

func runFileDemo(pool *worker.Pool, log *logging.Logger) {
	dir, err := os.MkdirTemp("", "taskflow-demo")
	if err != nil {
		log.Errorf("mkdtemp: %v", err)
		return
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "greeting.txt")

	done := make(chan struct{})
	asyncfile.Open(pool, path, asyncfile.ReadWrite(1), func(f *asyncfile.File, err error) {
		if err != nil {
			log.Errorf("open: %v", err)
			close(done)
			return
		}
		defer f.Close()

		payload := []byte("hello from taskflow\n")
		f.Write(pool, asyncfile.WriteOptions{Kind: asyncfile.WriteSync}, 0, payload, func(n int, err error) {
			if err != nil {
				log.Errorf("write: %v", err)
				close(done)
				return
			}
			f.Read(pool, 0, n, func(data []byte, err error) {
				if err != nil {
					log.Errorf("read: %v", err)
				} else {
					log.Infof("file round trip: %q", string(data))
				}
				close(done)
			})
		})
	})
	<-done
}

func runTimerDemo(rt *taskflowruntime.Runtime, log *logging.Logger) {
	done := make(chan struct{})
	rt.Timer.SetTimeout(func() {
		log.Infof("timer fired")
		close(done)
	}, 25)
	<-done
}

func runFutureDemo(rt *taskflowruntime.Runtime, log *logging.Logger) {
	fut := future.Spawn(rt.Futures, rt.FutureTimeout(), func(publish func(string, error)) {
		publish("future resolved", nil)
	})

	deadline := time.After(time.Second)
	for {
		v, err := fut.Poll()
		if err == nil {
			log.Infof("future: %s", v)
			return
		}
		if err != future.ErrNotReady {
			log.Errorf("future: %v", err)
			return
		}
		select {
		case <-deadline:
			log.Errorf("future never resolved")
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func logLevelFromString(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.DebugLevel
	case "warn":
		return logging.WarnLevel
	case "error":
		return logging.ErrorLevel
	default:
		return logging.InfoLevel
	}
}
