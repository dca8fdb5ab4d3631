package config

const (
	defaultDataDir            = "~/.local/share/tonearm"
	defaultLogDir             = "~/.local/share/tonearm/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultCacheMaxAgeDays    = 30
	defaultRetainAccessCount  = 3
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 5
	defaultItemTimeout        = 60
	defaultMaxRetries         = 3
	defaultEventCapacity      = 1000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Cache: Cache{
			MaxAgeDays:        defaultCacheMaxAgeDays,
			RetainAccessCount: defaultRetainAccessCount,
		},
		Verification: Verification{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			ItemTimeout:        defaultItemTimeout,
			MaxRetries:         defaultMaxRetries,
			DefaultPriority:    0,
		},
		Telemetry: Telemetry{
			EventCapacity: defaultEventCapacity,
		},
	}
}
