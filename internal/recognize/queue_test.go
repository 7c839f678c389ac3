package recognize_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"folio/internal/library"
	"folio/internal/logging"
	"folio/internal/recognize"
	"folio/internal/testsupport"
)

type stubRecognizer struct {
	meta *recognize.Metadata
	err  error
}

func (s stubRecognizer) Recognize(context.Context, string) (*recognize.Metadata, error) {
	return s.meta, s.err
}

func newPDFAttachment(t *testing.T, store *library.Store, lib *library.Library, parentID *int64) *library.Item {
	t.Helper()
	ctx := context.Background()

	item, err := store.CreateItem(ctx, &library.NewItem{
		LibraryID: lib.ID,
		ItemType:  library.ItemTypeAttachment,
		ParentID:  parentID,
		Title:     "paper.pdf",
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	pdfPath := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if err := store.UpsertAttachment(ctx, &library.Attachment{
		ItemID:      item.ID,
		ContentType: "application/pdf",
		LinkMode:    library.LinkModeImportedFile,
		Path:        pdfPath,
		Status:      library.AttachmentDone,
	}); err != nil {
		t.Fatalf("UpsertAttachment: %v", err)
	}
	return item
}

func TestProcessCreatesParentForStandalonePDF(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustDefaultLibrary(t, store)
	ctx := context.Background()

	col := testsupport.NewCollection(t, store, lib.ID, "Inbox")
	attachment := newPDFAttachment(t, store, lib, nil)
	if err := store.AddToCollection(ctx, col.ID, attachment.ID); err != nil {
		t.Fatalf("AddToCollection: %v", err)
	}

	queue := recognize.NewQueue(store, stubRecognizer{meta: &recognize.Metadata{
		Title:    "Recognized Paper",
		Creators: []recognize.Author{{FirstName: "Ada", LastName: "Lovelace"}},
		DOI:      "10.1/2",
	}}, nil, cfg, logging.NewNop())

	queue.Process(ctx, attachment.ID)

	updated, err := store.ItemByID(ctx, attachment.ID)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if updated.ParentID == nil {
		t.Fatal("attachment should have been reparented")
	}

	parent, err := store.ItemByID(ctx, *updated.ParentID)
	if err != nil {
		t.Fatalf("ItemByID parent: %v", err)
	}
	if parent.Title != "Recognized Paper" || parent.ItemType != "journalArticle" {
		t.Fatalf("unexpected parent: %+v", parent)
	}

	parentCols, err := store.CollectionsForItem(ctx, parent.ID)
	if err != nil {
		t.Fatalf("CollectionsForItem: %v", err)
	}
	if len(parentCols) != 1 || parentCols[0] != col.ID {
		t.Fatalf("collection membership should move to parent, got %v", parentCols)
	}
}

func TestProcessEnrichesSynthesizedWebpageParent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustDefaultLibrary(t, store)
	ctx := context.Background()

	parent, err := store.CreateItem(ctx, &library.NewItem{
		LibraryID: lib.ID,
		ItemType:  "webpage",
		Title:     "https://example.org/paper.pdf",
	})
	if err != nil {
		t.Fatalf("CreateItem parent: %v", err)
	}
	attachment := newPDFAttachment(t, store, lib, &parent.ID)

	queue := recognize.NewQueue(store, stubRecognizer{meta: &recognize.Metadata{
		Title:    "Proper Title",
		ItemType: "journalArticle",
		Date:     "2019",
	}}, nil, cfg, logging.NewNop())

	queue.Process(ctx, attachment.ID)

	updated, err := store.ItemByID(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if updated.Title != "Proper Title" || updated.ItemType != "journalArticle" {
		t.Fatalf("parent not enriched: %+v", updated)
	}
	fields, err := store.Fields(ctx, parent.ID)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if fields["date"] != "2019" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestProcessSkipsDeletedAttachment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustDefaultLibrary(t, store)
	ctx := context.Background()

	attachment := newPDFAttachment(t, store, lib, nil)
	if _, err := store.DeleteItem(ctx, attachment.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	queue := recognize.NewQueue(store, stubRecognizer{meta: &recognize.Metadata{Title: "x"}}, nil, cfg, logging.NewNop())
	queue.Process(ctx, attachment.ID)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Items != 0 {
		t.Fatalf("no parent should be created for a deleted attachment, got %+v", stats)
	}
}

func TestProcessLeavesRealParentAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustDefaultLibrary(t, store)
	ctx := context.Background()

	parent, err := store.CreateItem(ctx, &library.NewItem{
		LibraryID: lib.ID,
		ItemType:  "journalArticle",
		Title:     "Original Title",
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	attachment := newPDFAttachment(t, store, lib, &parent.ID)

	queue := recognize.NewQueue(store, stubRecognizer{meta: &recognize.Metadata{Title: "Clobbered"}}, nil, cfg, logging.NewNop())
	queue.Process(ctx, attachment.ID)

	updated, err := store.ItemByID(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if updated.Title != "Original Title" {
		t.Fatalf("real parent must not be modified: %+v", updated)
	}
}

func TestProcessRecognitionFailureLeavesItemUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustDefaultLibrary(t, store)
	ctx := context.Background()

	attachment := newPDFAttachment(t, store, lib, nil)

	queue := recognize.NewQueue(store, stubRecognizer{err: errors.New("worker down")}, nil, cfg, logging.NewNop())
	queue.Process(ctx, attachment.ID)

	updated, err := store.ItemByID(ctx, attachment.ID)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if updated.ParentID != nil {
		t.Fatal("failed recognition must not modify the attachment")
	}
}

func TestEnqueueDropsWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	queue := recognize.NewQueue(store, nil, nil, cfg, logging.NewNop())
	if queue.Enqueue(1) {
		t.Fatal("disabled queue must drop enqueues")
	}
}

func TestHTTPRecognizerPostsPDF(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"Found","authors":[{"firstName":"A","lastName":"B"}]}`))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithRecognizer(server.URL))
	rec := recognize.NewHTTPRecognizer(cfg)

	pdfPath := filepath.Join(t.TempDir(), "x.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	meta, err := rec.Recognize(context.Background(), pdfPath)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if meta.Title != "Found" || len(meta.Creators) != 1 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if gotContentType != "application/pdf" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
}
