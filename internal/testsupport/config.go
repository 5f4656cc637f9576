// Package testsupport provides fixtures shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"tidy/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test. The safety root is the temp base so fixture files pass the path
// guard. The scheduler is disabled by default.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.SafetyRoot = base
	cfg.Scheduler.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithSchedulerEnabled turns the minute ticker on for the test daemon.
func WithSchedulerEnabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.Enabled = true
	}
}

// WithSafetyRoot overrides the path guard root.
func WithSafetyRoot(root string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.SafetyRoot = root
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
