package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration consistency before daemon startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		return fmt.Errorf("config: paths.runtime_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("config: paths.log_dir must be set")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q not recognized", c.Logging.Level)
	}

	if c.Limits.MaxFrameBytes <= 0 {
		return fmt.Errorf("config: limits.max_frame_bytes must be positive, got %d", c.Limits.MaxFrameBytes)
	}
	if c.Limits.MaxObjectDepth <= 0 {
		return fmt.Errorf("config: limits.max_object_depth must be positive, got %d", c.Limits.MaxObjectDepth)
	}
	if c.Journal.RetentionDays < 0 {
		return fmt.Errorf("config: journal.retention_days must not be negative, got %d", c.Journal.RetentionDays)
	}

	for _, sub := range c.Devices.Subsystems {
		if sub == "" {
			return fmt.Errorf("config: devices.subsystems entries must not be empty")
		}
	}
	return nil
}
