// Package config loads, normalizes, and validates folio's TOML configuration.
// All path fields are expanded to absolute paths during Load so the rest of
// the daemon never deals with "~" or relative segments.
package config
