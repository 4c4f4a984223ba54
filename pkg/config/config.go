// Package config loads and validates taskflow's runtime configuration:
// worker pool sizing, task pool free-list capacity, timer tick period,
// file engine buffer defaults, future timeouts, and logging.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all taskflow runtime configuration.
type Config struct {
	Worker   WorkerConfig   `json:"worker"`
	TaskPool TaskPoolConfig `json:"task_pool"`
	Timer    TimerConfig    `json:"timer"`
	File     FileConfig     `json:"file"`
	Future   FutureConfig   `json:"future"`
	Logging  LoggingConfig  `json:"logging"`
}

// WorkerConfig controls the worker pool.
type WorkerConfig struct {
	Count         int `json:"count"`
	SlackBudget   int `json:"slack_budget"`
	MaxQueueLen   int `json:"max_queue_len"`
}

// TaskPoolConfig controls the priority task queue's free-list.
type TaskPoolConfig struct {
	FreeListCapacity  int `json:"free_list_capacity"`
	DefaultPriority   int `json:"default_priority"`
}

// TimerConfig controls the hashed timing wheel driver.
type TimerConfig struct {
	TickMillis      int64 `json:"tick_millis"`
	DefaultPriority int   `json:"default_priority"`
}

// FileConfig controls the async file engine's buffering.
type FileConfig struct {
	BlockSizeFallback    int `json:"block_size_fallback"`
	BufferSizeMultiplier int `json:"buffer_size_multiplier"`
}

// FutureConfig controls FutTask/FutTaskPool defaults.
type FutureConfig struct {
	InfraPriority  int           `json:"infra_priority"`
	DefaultTimeout time.Duration `json:"default_timeout"`
}

// LoggingConfig mirrors pkg/logging.Config in JSON-friendly form.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
	File   string `json:"file"`
}

// DefaultConfig returns a configuration with sensible defaults. The
// 10ms timer tick is the minimum timingwheel.New clamps to, and the
// future infra priority equals future.InfraPriority.
func DefaultConfig() *Config {
	return &Config{
		Worker: WorkerConfig{
			Count:       4,
			SlackBudget: 2,
			MaxQueueLen: 1024,
		},
		TaskPool: TaskPoolConfig{
			FreeListCapacity: 256,
			DefaultPriority:  10,
		},
		Timer: TimerConfig{
			TickMillis:      10,
			DefaultPriority: 10,
		},
		File: FileConfig{
			BlockSizeFallback:    8192,
			BufferSizeMultiplier: 4,
		},
		Future: FutureConfig{
			InfraPriority:  10_000_000,
			DefaultTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "console",
			File:   "",
		},
	}
}

// LoadConfig loads configuration from configPath (if non-empty and the
// file exists), then applies TASKFLOW_* environment overrides, then
// validates. A missing file is not an error — defaults are used instead.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return json.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	if val := os.Getenv("TASKFLOW_WORKER_COUNT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Worker.Count = n
		}
	}
	if val := os.Getenv("TASKFLOW_WORKER_SLACK"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Worker.SlackBudget = n
		}
	}
	if val := os.Getenv("TASKFLOW_WORKER_MAX_QUEUE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Worker.MaxQueueLen = n
		}
	}

	if val := os.Getenv("TASKFLOW_TASKPOOL_FREELIST"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.TaskPool.FreeListCapacity = n
		}
	}
	if val := os.Getenv("TASKFLOW_TASKPOOL_DEFAULT_PRIORITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.TaskPool.DefaultPriority = n
		}
	}

	if val := os.Getenv("TASKFLOW_TIMER_TICK_MS"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Timer.TickMillis = n
		}
	}
	if val := os.Getenv("TASKFLOW_TIMER_DEFAULT_PRIORITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Timer.DefaultPriority = n
		}
	}

	if val := os.Getenv("TASKFLOW_FILE_BLOCK_SIZE_FALLBACK"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.File.BlockSizeFallback = n
		}
	}
	if val := os.Getenv("TASKFLOW_FILE_BUFFER_MULTIPLIER"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.File.BufferSizeMultiplier = n
		}
	}

	if val := os.Getenv("TASKFLOW_FUTURE_INFRA_PRIORITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Future.InfraPriority = n
		}
	}
	if val := os.Getenv("TASKFLOW_FUTURE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Future.DefaultTimeout = d
		}
	}

	if val := os.Getenv("TASKFLOW_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("TASKFLOW_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
	if val := os.Getenv("TASKFLOW_LOG_OUTPUT"); val != "" {
		c.Logging.Output = val
	}
	if val := os.Getenv("TASKFLOW_LOG_FILE"); val != "" {
		c.Logging.File = val
	}
}

// Validate checks that every sub-config holds a usable value.
func (c *Config) Validate() error {
	if c.Worker.Count <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Worker.SlackBudget < 0 {
		return fmt.Errorf("worker slack budget cannot be negative")
	}
	if c.Worker.MaxQueueLen <= 0 {
		return fmt.Errorf("worker max queue length must be positive")
	}

	if c.TaskPool.DefaultPriority < 0 {
		return fmt.Errorf("task pool default priority cannot be negative")
	}

	if c.Timer.TickMillis <= 0 {
		return fmt.Errorf("timer tick must be positive")
	}

	if c.File.BlockSizeFallback <= 0 {
		return fmt.Errorf("file block size fallback must be positive")
	}
	if c.File.BufferSizeMultiplier <= 0 {
		return fmt.Errorf("file buffer size multiplier must be positive")
	}

	if c.Future.InfraPriority <= 0 {
		return fmt.Errorf("future infra priority must be positive")
	}
	if c.Future.DefaultTimeout <= 0 {
		return fmt.Errorf("future default timeout must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	validOutputs := map[string]bool{"console": true, "file": true, "both": true}
	if !validOutputs[strings.ToLower(c.Logging.Output)] {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}

// SaveToFile writes c as indented JSON to path, creating parent
// directories as needed.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// GetDefaultConfigPath returns ~/.taskflow/config.json.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".taskflow", "config.json"), nil
}
