package testsupport

import (
	"path/filepath"
	"testing"

	"msgport/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RuntimeDir = filepath.Join(base, "run")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Devices.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithLimits overrides wire limits on the test config.
func WithLimits(maxFrameBytes, maxObjectDepth int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Limits.MaxFrameBytes = maxFrameBytes
		cfg.Limits.MaxObjectDepth = maxObjectDepth
	}
}

// WithJournalDisabled turns off delivery journaling.
func WithJournalDisabled() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Journal.Enabled = false
	}
}
