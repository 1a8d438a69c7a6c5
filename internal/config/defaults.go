package config

const (
	defaultDataDir             = "~/.local/share/tramita"
	defaultLogDir              = "~/.local/share/tramita/logs"
	defaultAPIBind             = "127.0.0.1:7519"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultRequestTimeout      = 10
	defaultExpiryDays          = 30
	defaultMaintenanceInterval = 300
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Notifications: Notifications{
			RequestTimeout:    defaultRequestTimeout,
			DefaultExpiryDays: defaultExpiryDays,
		},
		Workflow: Workflow{
			MaintenanceInterval: defaultMaintenanceInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
