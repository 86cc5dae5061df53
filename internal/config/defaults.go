package config

const (
	defaultDBPath            = "~/.local/share/vpo/vpo.db"
	defaultLogDir            = "~/.local/share/vpo/logs"
	defaultPolicyPath        = "~/.config/vpo/policy.yaml"
	defaultWorkers           = 2
	defaultOnError           = "skip"
	defaultDBTimeoutSeconds  = 5
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120
	defaultLogFormat         = "auto"
	defaultLogLevel          = "info"
)

func defaultVideoExtensions() []string {
	return []string{".mkv", ".mp4", ".m4v", ".avi", ".mov", ".webm", ".ts"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DBPath:     defaultDBPath,
			LogDir:     defaultLogDir,
			PolicyPath: defaultPolicyPath,
		},
		Processing: Processing{
			Workers:           defaultWorkers,
			OnError:           defaultOnError,
			VideoExtensions:   defaultVideoExtensions(),
			DBTimeoutSeconds:  defaultDBTimeoutSeconds,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
