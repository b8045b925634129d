// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Budgets stay at repository defaults; tests that need tighter ceilings
// override them through options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Archive.Path = filepath.Join(base, "data", "history.db")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkers overrides the worker pool size.
func WithWorkers(count int) ConfigOption {
	return func(c *config.Config) {
		c.Workers.Count = count
	}
}

// WithQueueDepth overrides the scheduler depth ceiling.
func WithQueueDepth(depth int) ConfigOption {
	return func(c *config.Config) {
		c.Queue.MaxDepth = depth
	}
}

// WithEngine overrides the engine selection.
func WithEngine(name string) ConfigOption {
	return func(c *config.Config) {
		c.Engine.Name = name
	}
}

// WithArchiveDisabled turns off history persistence.
func WithArchiveDisabled() ConfigOption {
	return func(c *config.Config) {
		c.Archive.Enabled = false
	}
}
