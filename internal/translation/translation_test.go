package translation_test

import (
	"context"
	"errors"
	"testing"

	"folio/internal/services"
	"folio/internal/translation"
)

const scholarlyPage = `<html><head>
<meta name="citation_title" content="Circadian Mood Variations">
<meta name="citation_journal_title" content="Journal of Chronobiology">
<meta name="citation_author" content="Lovelace, Ada">
<meta name="citation_author" content="Charles Babbage">
<meta name="citation_publication_date" content="2006">
<meta name="citation_doi" content="10.1234/5678">
<meta name="citation_firstpage" content="12">
<meta name="citation_lastpage" content="34">
<meta name="citation_pdf_url" content="https://example.org/paper.pdf">
</head><body></body></html>`

func TestDetectFindsEmbeddedMetadata(t *testing.T) {
	reg := translation.NewRegistry()

	refs, err := reg.Detect(context.Background(), "https://example.org/article", scholarlyPage)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(refs) != 1 || refs[0].Label != "Embedded Metadata" {
		t.Fatalf("unexpected refs: %+v", refs)
	}
}

func TestDetectEmptyForPlainPage(t *testing.T) {
	reg := translation.NewRegistry()

	refs, err := reg.Detect(context.Background(), "https://example.org", "<html><body>plain</body></html>")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no candidates, got %+v", refs)
	}
}

func TestRunTranslatesCitationTags(t *testing.T) {
	reg := translation.NewRegistry()

	drafts, err := reg.Run(context.Background(), "https://example.org/article", scholarlyPage)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}

	draft := drafts[0]
	if draft.ItemType != "journalArticle" || draft.Title != "Circadian Mood Variations" {
		t.Fatalf("unexpected draft: %+v", draft)
	}
	if draft.Fields["DOI"] != "10.1234/5678" || draft.Fields["pages"] != "12-34" {
		t.Fatalf("unexpected fields: %v", draft.Fields)
	}
	if len(draft.Creators) != 2 {
		t.Fatalf("unexpected creators: %+v", draft.Creators)
	}
	if draft.Creators[0].LastName != "Lovelace" || draft.Creators[0].FirstName != "Ada" {
		t.Fatalf("comma-form author parsed wrong: %+v", draft.Creators[0])
	}
	if draft.Creators[1].LastName != "Babbage" || draft.Creators[1].FirstName != "Charles" {
		t.Fatalf("space-form author parsed wrong: %+v", draft.Creators[1])
	}
	if len(draft.Attachments) != 1 || draft.Attachments[0].MimeType != "application/pdf" {
		t.Fatalf("expected pdf attachment draft, got %+v", draft.Attachments)
	}
}

func TestRunNoTranslatorIsNoHandler(t *testing.T) {
	reg := translation.NewRegistry()

	_, err := reg.Run(context.Background(), "https://example.org", "<html><body>nothing here</body></html>")
	if !errors.Is(err, services.ErrNoHandler) {
		t.Fatalf("expected no-handler error, got %v", err)
	}
}

func TestCodeLookup(t *testing.T) {
	reg := translation.NewRegistry()

	refs, err := reg.Detect(context.Background(), "https://example.org", scholarlyPage)
	if err != nil || len(refs) == 0 {
		t.Fatalf("Detect: %v %v", refs, err)
	}

	code, ok := reg.Code(refs[0].ID)
	if !ok || code == "" {
		t.Fatalf("expected translator code, got ok=%v", ok)
	}
	if _, ok := reg.Code("missing"); ok {
		t.Fatal("unknown translator must not resolve")
	}
}
