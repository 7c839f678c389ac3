// Package importer parses bibliographic interchange formats into item
// drafts. Parsers are registered per content type; the connector's
// /connector/import endpoint hands the request body straight through.
package importer

import (
	"context"
	"mime"
	"strings"

	"folio/internal/library"
	"folio/internal/services"
)

// Parser converts one interchange format into drafts.
type Parser interface {
	// ContentType is the media type the parser handles, without
	// parameters.
	ContentType() string
	Parse(ctx context.Context, body []byte) ([]*library.Draft, error)
}

// Registry routes import payloads to the parser registered for their
// content type.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a registry with the built-in parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register(&BibTeXParser{})
	r.Register(&CSLJSONParser{})
	return r
}

// Register adds or replaces the parser for its content type.
func (r *Registry) Register(p Parser) {
	r.parsers[normalizeContentType(p.ContentType())] = p
}

// Parse dispatches on the request content type. An unregistered type
// is a validation error so clients see a 400 rather than a silent
// no-op.
func (r *Registry) Parse(ctx context.Context, contentType string, body []byte) ([]*library.Draft, error) {
	parser, ok := r.parsers[normalizeContentType(contentType)]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "importer", "parse", "unsupported content type "+contentType, nil)
	}
	drafts, err := parser.Parse(ctx, body)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, services.Wrap(services.ErrValidation, "importer", "parse", "no items in import body", nil)
	}
	return drafts, nil
}

func normalizeContentType(contentType string) string {
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return media
}
