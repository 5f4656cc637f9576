package config

const (
	defaultDataDir    = "~/.local/share/tidy"
	defaultLogDir     = "~/.local/share/tidy/logs"
	defaultAPIBind    = "127.0.0.1:8087"
	defaultSafetyRoot = "/mnt"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
			SafetyRoot: defaultSafetyRoot,
		},
		Scheduler: Scheduler{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
