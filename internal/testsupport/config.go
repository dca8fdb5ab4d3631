package testsupport

import (
	"path/filepath"
	"testing"

	"tonearm/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxRetries overrides the verification retry limit on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(c *config.Config) {
		c.Verification.MaxRetries = n
	}
}

// WithPollInterval overrides the queue poll interval on the test config.
func WithPollInterval(seconds int) ConfigOption {
	return func(c *config.Config) {
		c.Verification.QueuePollInterval = seconds
	}
}
