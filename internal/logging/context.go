package logging

import (
	"context"
	"log/slog"

	"folio/internal/services"
)

// Standardized attribute keys shared across the daemon's components.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldItemKey   = "item_key"
	FieldLibraryID = "library_id"
	FieldEventType = "event_type"
	FieldDuration  = "duration"
	FieldErrorHint = "error_hint"
)

// ContextAttrs extracts the correlation identifiers carried on ctx as
// log attributes. Missing identifiers are omitted.
func ContextAttrs(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var attrs []Attr
	if id, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldRequestID, id))
	}
	if id, ok := services.SessionIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldSessionID, id))
	}
	if key, ok := services.ItemKeyFromContext(ctx); ok {
		attrs = append(attrs, String(FieldItemKey, key))
	}
	return attrs
}

// WithContext returns a logger pre-populated with the correlation
// identifiers found on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	attrs := ContextAttrs(ctx)
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(attrs)...)
}
