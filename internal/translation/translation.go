// Package translation converts raw page HTML into item drafts. The
// engine is a registry of translators; the built-in one reads the
// embedded citation metadata (Highwire/Dublin Core meta tags) that
// scholarly publishers emit.
package translation

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"folio/internal/library"
	"folio/internal/services"
)

// TranslatorRef identifies one translator to API clients.
type TranslatorRef struct {
	ID       string `json:"translatorID"`
	Label    string `json:"label"`
	Priority int    `json:"priority"`
}

// Translator matches and converts one family of pages.
type Translator interface {
	Ref() TranslatorRef
	Code() string
	Detect(uri string, doc *goquery.Document) bool
	Translate(uri string, doc *goquery.Document) ([]*library.Draft, error)
}

// Engine is the translation surface the capture dispatcher consumes.
type Engine interface {
	Detect(ctx context.Context, uri, html string) ([]TranslatorRef, error)
	Run(ctx context.Context, uri, html string) ([]*library.Draft, error)
	Code(translatorID string) (string, bool)
}

// Registry is the default Engine.
type Registry struct {
	translators []Translator
}

// NewRegistry builds a registry with the built-in translators.
func NewRegistry() *Registry {
	return &Registry{
		translators: []Translator{newEmbeddedMetadata()},
	}
}

// Register adds a translator. Higher priority translators run first.
func (r *Registry) Register(t Translator) {
	r.translators = append(r.translators, t)
}

// Detect returns the translators that can handle the page, in
// priority order.
func (r *Registry) Detect(ctx context.Context, uri, html string) ([]TranslatorRef, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}
	var refs []TranslatorRef
	for _, t := range r.ordered() {
		if t.Detect(uri, doc) {
			refs = append(refs, t.Ref())
		}
	}
	return refs, nil
}

// Run translates the page with the best matching translator. Returns
// ErrNoHandler when no translator matches or the match yields nothing.
func (r *Registry) Run(ctx context.Context, uri, html string) ([]*library.Draft, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}
	for _, t := range r.ordered() {
		if !t.Detect(uri, doc) {
			continue
		}
		drafts, err := t.Translate(uri, doc)
		if err != nil {
			return nil, err
		}
		if len(drafts) > 0 {
			return drafts, nil
		}
	}
	return nil, services.Wrap(services.ErrNoHandler, "translation", "run", "no translator matches "+uri, nil)
}

// Code returns a translator's source text by identifier.
func (r *Registry) Code(translatorID string) (string, bool) {
	for _, t := range r.translators {
		if t.Ref().ID == translatorID {
			return t.Code(), true
		}
	}
	return "", false
}

func (r *Registry) ordered() []Translator {
	ordered := make([]Translator, len(r.translators))
	copy(ordered, r.translators)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Ref().Priority > ordered[j-1].Ref().Priority; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

func parseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "translation", "parse html", "", err)
	}
	return doc, nil
}
