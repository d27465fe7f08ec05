package config

const (
	defaultRuntimeDir           = "~/.local/share/msgport/run"
	defaultLogDir               = "~/.local/share/msgport/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMaxFrameBytes        = 4 << 20
	defaultMaxObjectDepth       = 32
	defaultJournalRetentionDays = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RuntimeDir: defaultRuntimeDir,
			LogDir:     defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Limits: Limits{
			MaxFrameBytes:  defaultMaxFrameBytes,
			MaxObjectDepth: defaultMaxObjectDepth,
		},
		Journal: Journal{
			Enabled:       true,
			RetentionDays: defaultJournalRetentionDays,
		},
		Devices: Devices{
			Enabled:    false,
			Subsystems: []string{"bluetooth"},
		},
	}
}
