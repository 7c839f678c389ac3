package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"folio/internal/services"
)

func TestPrettyHandlerFormatsComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("session started",
		String(FieldComponent, "session"),
		String(FieldSessionID, "abc123"),
	)

	out := buf.String()
	if !strings.Contains(out, "INFO session: session started") {
		t.Fatalf("unexpected log line: %q", out)
	}
	if !strings.Contains(out, "session_id=abc123") {
		t.Fatalf("missing session attribute: %q", out)
	}
	if strings.Contains(out, "component=") {
		t.Fatalf("component should be a prefix, not an attribute: %q", out)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Warn("fetch failed", String("url", "https://example.org/a b"))

	if !strings.Contains(buf.String(), `url="https://example.org/a b"`) {
		t.Fatalf("expected quoted attribute value: %q", buf.String())
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be suppressed: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	base := slog.New(newPrettyHandler(&buf, lvl, false))

	ctx := services.WithRequestID(context.Background(), "req-1")
	ctx = services.WithSessionID(ctx, "sess-9")

	WithContext(ctx, base).Info("saving items")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-1") || !strings.Contains(out, "session_id=sess-9") {
		t.Fatalf("missing correlation fields: %q", out)
	}
}

func TestNewComponentLoggerNilBase(t *testing.T) {
	logger := NewComponentLogger(nil, "capture")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("no-op sink should not panic")
}
