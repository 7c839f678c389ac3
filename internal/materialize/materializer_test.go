package materialize_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"folio/internal/destination"
	"folio/internal/library"
	"folio/internal/logging"
	"folio/internal/materialize"
	"folio/internal/services"
	"folio/internal/testsupport"
)

type fakeQueue struct {
	mu  sync.Mutex
	ids []int64
}

func (q *fakeQueue) Enqueue(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return true
}

func (q *fakeQueue) enqueued() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int64(nil), q.ids...)
}

func newMaterializer(t *testing.T) (*materialize.Materializer, *library.Store, *library.Library, *fakeQueue) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustDefaultLibrary(t, store)
	queue := &fakeQueue{}
	m := materialize.New(store, materialize.NewFetcher(cfg), queue, cfg, logging.NewNop())
	return m, store, lib, queue
}

func TestMaterializeParentThenAttachment(t *testing.T) {
	m, store, lib, _ := newMaterializer(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>Attachment</title></head><body>x</body></html>"))
	}))
	defer server.Close()

	col := testsupport.NewCollection(t, store, lib.ID, "News")
	draft := &library.Draft{
		ItemType: "newspaperArticle",
		Title:    "Title",
		Creators: []library.CreatorDraft{{FirstName: "First", LastName: "Last", CreatorType: "author"}},
		Attachments: []library.AttachmentDraft{
			{Title: "Attachment", URL: server.URL, MimeType: "text/html"},
		},
	}

	result, err := m.Materialize(ctx, draft, destination.Destination{LibraryID: lib.ID, CollectionID: &col.ID})
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if result.Parent.ItemType != "newspaperArticle" || result.Parent.Title != "Title" {
		t.Fatalf("unexpected parent: %+v", result.Parent)
	}
	if len(result.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(result.Attachments))
	}
	if result.Attachments[0].ID <= result.Parent.ID {
		t.Fatal("attachment must be created after its parent")
	}
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", result.Failures)
	}

	cols, err := store.CollectionsForItem(ctx, result.Parent.ID)
	if err != nil {
		t.Fatalf("CollectionsForItem: %v", err)
	}
	if len(cols) != 1 || cols[0] != col.ID {
		t.Fatalf("parent not placed in collection: %v", cols)
	}

	att, err := store.AttachmentByItem(ctx, result.Attachments[0].ID)
	if err != nil {
		t.Fatalf("AttachmentByItem: %v", err)
	}
	if att.Status != library.AttachmentDone || att.ContentType != "text/html" {
		t.Fatalf("unexpected attachment: %+v", att)
	}
	body, err := os.ReadFile(att.Path)
	if err != nil {
		t.Fatalf("read stored snapshot: %v", err)
	}
	if !strings.Contains(string(body), "Attachment") {
		t.Fatal("stored snapshot missing page content")
	}
}

func TestMaterializeRejectsUnknownField(t *testing.T) {
	m, store, lib, _ := newMaterializer(t)

	draft := &library.Draft{
		ItemType: "webpage",
		Title:    "Page",
		Fields:   map[string]string{"notAField": "x"},
	}
	_, err := m.Materialize(context.Background(), draft, destination.Destination{LibraryID: lib.ID})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "notAField") {
		t.Fatalf("error must name the offending field: %v", err)
	}

	stats, statErr := store.Stats(context.Background())
	if statErr != nil {
		t.Fatalf("Stats: %v", statErr)
	}
	if stats.Items != 0 {
		t.Fatalf("nothing should be created on validation failure, got %+v", stats)
	}
}

func TestMaterializeRejectsMissingItemType(t *testing.T) {
	m, _, lib, _ := newMaterializer(t)

	_, err := m.Materialize(context.Background(), &library.Draft{Title: "x"}, destination.Destination{LibraryID: lib.ID})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMaterializeFetchFailureIsPartial(t *testing.T) {
	m, store, lib, _ := newMaterializer(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	draft := &library.Draft{
		ItemType:    "webpage",
		Title:       "Page",
		Attachments: []library.AttachmentDraft{{Title: "Broken", URL: server.URL}},
	}
	result, err := m.Materialize(ctx, draft, destination.Destination{LibraryID: lib.ID})
	if err != nil {
		t.Fatalf("fetch failure must not fail the save: %v", err)
	}
	if result.Parent == nil {
		t.Fatal("parent must be returned despite attachment failure")
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 partial failure, got %+v", result.Failures)
	}

	att, err := store.AttachmentByItem(ctx, result.Attachments[0].ID)
	if err != nil {
		t.Fatalf("AttachmentByItem: %v", err)
	}
	if att.Status != library.AttachmentFailed || att.Error == "" {
		t.Fatalf("expected failed attachment with reason, got %+v", att)
	}
}

func TestMaterializePDFAttachmentEnqueuesRecognition(t *testing.T) {
	m, _, lib, queue := newMaterializer(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer server.Close()

	draft := &library.Draft{
		ItemType:    "journalArticle",
		Title:       "Paper",
		Attachments: []library.AttachmentDraft{{Title: "Full Text", URL: server.URL, MimeType: "application/pdf"}},
	}
	result, err := m.Materialize(context.Background(), draft, destination.Destination{LibraryID: lib.ID})
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	enqueued := queue.enqueued()
	if len(enqueued) != 1 || enqueued[0] != result.Attachments[0].ID {
		t.Fatalf("expected attachment enqueued for recognition, got %v", enqueued)
	}
}

func TestSavePageSnapshot(t *testing.T) {
	m, store, lib, _ := newMaterializer(t)
	ctx := context.Background()

	html := "<html><head><title>Remote Eval</title></head><body>content</body></html>"
	result, err := m.SavePageSnapshot(ctx, "https://example.org/eval", html, destination.Destination{LibraryID: lib.ID})
	if err != nil {
		t.Fatalf("SavePageSnapshot: %v", err)
	}
	if result.Parent.ItemType != "webpage" || result.Parent.Title != "Remote Eval" {
		t.Fatalf("unexpected parent: %+v", result.Parent)
	}
	if len(result.Attachments) != 1 {
		t.Fatalf("expected snapshot child, got %+v", result.Attachments)
	}

	att, err := store.AttachmentByItem(ctx, result.Attachments[0].ID)
	if err != nil {
		t.Fatalf("AttachmentByItem: %v", err)
	}
	if att.Status != library.AttachmentDone {
		t.Fatalf("snapshot not stored: %+v", att)
	}
	body, err := os.ReadFile(att.Path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(body) != html {
		t.Fatal("snapshot content mismatch")
	}
}

func TestImportRemotePDF(t *testing.T) {
	m, store, lib, queue := newMaterializer(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 body"))
	}))
	defer server.Close()

	result, isPDF, err := m.ImportRemotePDF(ctx, server.URL+"/paper.pdf", destination.Destination{LibraryID: lib.ID})
	if err != nil {
		t.Fatalf("ImportRemotePDF: %v", err)
	}
	if !isPDF {
		t.Fatal("expected PDF detection")
	}
	if result.Parent.ItemType != "webpage" {
		t.Fatalf("expected synthesized webpage parent, got %+v", result.Parent)
	}

	att, err := store.AttachmentByItem(ctx, result.Attachments[0].ID)
	if err != nil {
		t.Fatalf("AttachmentByItem: %v", err)
	}
	if att.Status != library.AttachmentDone || att.ContentType != "application/pdf" {
		t.Fatalf("unexpected attachment: %+v", att)
	}
	if got := queue.enqueued(); len(got) != 1 {
		t.Fatalf("expected recognition enqueue, got %v", got)
	}
}

func TestImportRemotePDFFallsThroughForHTML(t *testing.T) {
	m, _, lib, _ := newMaterializer(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>not a pdf</body></html>"))
	}))
	defer server.Close()

	result, isPDF, err := m.ImportRemotePDF(context.Background(), server.URL, destination.Destination{LibraryID: lib.ID})
	if err != nil {
		t.Fatalf("ImportRemotePDF: %v", err)
	}
	if isPDF || result != nil {
		t.Fatalf("HTML must fall through, got isPDF=%v result=%+v", isPDF, result)
	}
}

func TestTitleFromHTML(t *testing.T) {
	if got := materialize.TitleFromHTML("<html><head><title> A Title </title></head></html>"); got != "A Title" {
		t.Fatalf("TitleFromHTML = %q", got)
	}
	if got := materialize.TitleFromHTML("<html><body>none</body></html>"); got != "" {
		t.Fatalf("expected empty title, got %q", got)
	}
}
