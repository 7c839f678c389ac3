// Package logging builds the daemon's slog loggers and defines the
// standardized attribute keys used across components.
package logging
