package config

const (
	defaultDataDir              = "~/.local/share/folio"
	defaultAttachmentsDir       = "~/.local/share/folio/attachments"
	defaultLogDir               = "~/.local/share/folio/logs"
	defaultAPIBind              = "127.0.0.1:23119"
	defaultSessionIdleTimeout   = 3600
	defaultSessionMax           = 128
	defaultSessionSweepInterval = 60
	defaultRecognizerEndpoint   = "https://recognizer.folio.example/recognize"
	defaultRecognizerTimeout    = 60
	defaultRecognizerQueueSize  = 32
	defaultFetchTimeout         = 30
	defaultFetchMaxBodyMiB      = 64
	defaultFetchUserAgent       = "folio/0.1"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:        defaultDataDir,
			AttachmentsDir: defaultAttachmentsDir,
			LogDir:         defaultLogDir,
			APIBind:        defaultAPIBind,
		},
		Sessions: Sessions{
			IdleTimeoutSeconds:   defaultSessionIdleTimeout,
			MaxSessions:          defaultSessionMax,
			SweepIntervalSeconds: defaultSessionSweepInterval,
		},
		Recognizer: Recognizer{
			Enabled:        true,
			Endpoint:       defaultRecognizerEndpoint,
			TimeoutSeconds: defaultRecognizerTimeout,
			QueueSize:      defaultRecognizerQueueSize,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeout,
			MaxBodyMiB:     defaultFetchMaxBodyMiB,
			UserAgent:      defaultFetchUserAgent,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Saves:          true,
			Recognition:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
