package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSessions(); err != nil {
		return err
	}
	if err := c.validateRecognizer(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.AttachmentsDir) == "" {
		return errors.New("paths.attachments_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateSessions() error {
	if err := ensurePositiveMap(map[string]int{
		"sessions.idle_timeout_seconds":   c.Sessions.IdleTimeoutSeconds,
		"sessions.max_sessions":           c.Sessions.MaxSessions,
		"sessions.sweep_interval_seconds": c.Sessions.SweepIntervalSeconds,
	}); err != nil {
		return err
	}
	if c.Sessions.IdleTimeoutSeconds <= c.Sessions.SweepIntervalSeconds {
		return errors.New("sessions.idle_timeout_seconds must be greater than sessions.sweep_interval_seconds")
	}
	return nil
}

func (c *Config) validateRecognizer() error {
	if !c.Recognizer.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Recognizer.Endpoint) == "" {
		return errors.New("recognizer.endpoint must be set when recognizer.enabled is true")
	}
	if c.Recognizer.TimeoutSeconds <= 0 {
		return errors.New("recognizer.timeout_seconds must be positive")
	}
	if c.Recognizer.QueueSize <= 0 {
		return errors.New("recognizer.queue_size must be positive")
	}
	return nil
}

func (c *Config) validateFetch() error {
	return ensurePositiveMap(map[string]int{
		"fetch.timeout_seconds": c.Fetch.TimeoutSeconds,
		"fetch.max_body_mib":    c.Fetch.MaxBodyMiB,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
