package config

import (
	"fmt"
	"strings"
)

// normalize expands paths, applies environment fallbacks, and fills defaults
// for zero-valued fields so validation can assume a complete config.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(defaulted(c.Paths.DataDir, defaultDataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.AttachmentsDir, err = expandPath(defaulted(c.Paths.AttachmentsDir, defaultAttachmentsDir)); err != nil {
		return fmt.Errorf("paths.attachments_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(defaulted(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Paths.APIBind = defaulted(c.Paths.APIBind, defaultAPIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	if c.Sessions.IdleTimeoutSeconds == 0 {
		c.Sessions.IdleTimeoutSeconds = defaultSessionIdleTimeout
	}
	if c.Sessions.MaxSessions == 0 {
		c.Sessions.MaxSessions = defaultSessionMax
	}
	if c.Sessions.SweepIntervalSeconds == 0 {
		c.Sessions.SweepIntervalSeconds = defaultSessionSweepInterval
	}

	c.Recognizer.Endpoint = strings.TrimSpace(c.Recognizer.Endpoint)
	if c.Recognizer.TimeoutSeconds == 0 {
		c.Recognizer.TimeoutSeconds = defaultRecognizerTimeout
	}
	if c.Recognizer.QueueSize == 0 {
		c.Recognizer.QueueSize = defaultRecognizerQueueSize
	}

	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeout
	}
	if c.Fetch.MaxBodyMiB == 0 {
		c.Fetch.MaxBodyMiB = defaultFetchMaxBodyMiB
	}
	c.Fetch.UserAgent = defaulted(c.Fetch.UserAgent, defaultFetchUserAgent)

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}

	c.Logging.Format = strings.ToLower(defaulted(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(defaulted(c.Logging.Level, defaultLogLevel))

	return nil
}

func defaulted(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
