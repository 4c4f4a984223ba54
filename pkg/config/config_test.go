package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Worker.Count != 4 {
		t.Errorf("expected default worker count 4, got %d", cfg.Worker.Count)
	}
	if cfg.Timer.TickMillis != 10 {
		t.Errorf("expected default tick 10ms, got %d", cfg.Timer.TickMillis)
	}
	if cfg.Future.InfraPriority != 10_000_000 {
		t.Errorf("expected default infra priority 10000000, got %d", cfg.Future.InfraPriority)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config failed validation: %v", err)
	}

	cfg.Worker.Count = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero worker count should fail validation")
	}

	cfg = DefaultConfig()
	cfg.Logging.Level = "invalid"
	if err := cfg.Validate(); err == nil {
		t.Error("invalid log level should fail validation")
	}

	cfg = DefaultConfig()
	cfg.Timer.TickMillis = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero tick period should fail validation")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	os.Setenv("TASKFLOW_WORKER_COUNT", "8")
	os.Setenv("TASKFLOW_LOG_LEVEL", "debug")
	os.Setenv("TASKFLOW_TIMER_TICK_MS", "50")
	defer func() {
		os.Unsetenv("TASKFLOW_WORKER_COUNT")
		os.Unsetenv("TASKFLOW_LOG_LEVEL")
		os.Unsetenv("TASKFLOW_TIMER_TICK_MS")
	}()

	cfg := DefaultConfig()
	cfg.applyEnvironmentOverrides()

	if cfg.Worker.Count != 8 {
		t.Errorf("environment override failed for worker count, got %d", cfg.Worker.Count)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("environment override failed for log level, got %s", cfg.Logging.Level)
	}
	if cfg.Timer.TickMillis != 50 {
		t.Errorf("environment override failed for timer tick, got %d", cfg.Timer.TickMillis)
	}
}

func TestConfigFileRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "taskflow_config_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Worker.Count = 16
	cfg.Future.DefaultTimeout = cfg.Future.DefaultTimeout * 2

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round-tripped config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadNonexistentConfig(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("loading non-existent config should not error: %v", err)
	}

	if cfg.Worker.Count != DefaultConfig().Worker.Count {
		t.Errorf("non-existent config should fall back to defaults, got worker count %d", cfg.Worker.Count)
	}
}
