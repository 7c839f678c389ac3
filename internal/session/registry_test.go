package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"folio/internal/destination"
	"folio/internal/library"
	"folio/internal/logging"
	"folio/internal/services"
	"folio/internal/session"
	"folio/internal/testsupport"
)

func newRegistry(t *testing.T) (*session.Registry, *library.Store, *library.Library) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustDefaultLibrary(t, store)
	return session.NewRegistry(store, cfg, logging.NewNop()), store, lib
}

func TestBeginIdempotentKeepsDestination(t *testing.T) {
	reg, _, _ := newRegistry(t)

	colID := int64(5)
	reg.Begin("abc", destination.Destination{LibraryID: 1, CollectionID: &colID})
	reg.Begin("abc", destination.Destination{LibraryID: 2})

	dest, ok := reg.Destination("abc")
	if !ok {
		t.Fatal("session missing")
	}
	if dest.LibraryID != 1 || dest.CollectionID == nil || *dest.CollectionID != 5 {
		t.Fatalf("destination was reset: %+v", dest)
	}
}

func TestRecordItemsUnknownSessionIsNoop(t *testing.T) {
	reg, _, _ := newRegistry(t)

	reg.RecordItems("ghost", 1, 2, 3)
	if _, ok := reg.Lookup("ghost"); ok {
		t.Fatal("recordItems must not create sessions")
	}
}

func TestUpdateUnknownSessionReturnsNotFound(t *testing.T) {
	reg, _, _ := newRegistry(t)

	_, err := reg.Update(context.Background(), "ghost", nil, "a,b")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateAppliesCollectionAndTags(t *testing.T) {
	reg, store, lib := newRegistry(t)
	ctx := context.Background()

	original := testsupport.NewCollection(t, store, lib.ID, "Original")
	target := testsupport.NewCollection(t, store, lib.ID, "Target")

	parent, err := store.CreateItem(ctx, &library.NewItem{LibraryID: lib.ID, ItemType: "newspaperArticle", Title: "Title"})
	if err != nil {
		t.Fatalf("CreateItem parent: %v", err)
	}
	child, err := store.CreateItem(ctx, &library.NewItem{
		LibraryID: lib.ID,
		ItemType:  library.ItemTypeAttachment,
		ParentID:  &parent.ID,
	})
	if err != nil {
		t.Fatalf("CreateItem child: %v", err)
	}
	if err := store.AddToCollection(ctx, original.ID, parent.ID); err != nil {
		t.Fatalf("AddToCollection: %v", err)
	}

	reg.Begin("sess", destination.Destination{LibraryID: lib.ID})
	reg.RecordItems("sess", parent.ID, child.ID)

	affected, err := reg.Update(ctx, "sess", &target.ID, "A, B")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(affected) != 2 {
		t.Fatalf("expected 2 affected items, got %v", affected)
	}

	parentCols, err := store.CollectionsForItem(ctx, parent.ID)
	if err != nil {
		t.Fatalf("CollectionsForItem: %v", err)
	}
	if len(parentCols) != 2 {
		t.Fatalf("parent should be in both collections, got %v", parentCols)
	}

	childCols, err := store.CollectionsForItem(ctx, child.ID)
	if err != nil {
		t.Fatalf("CollectionsForItem child: %v", err)
	}
	if len(childCols) != 0 {
		t.Fatalf("collections must only apply to top-level items, got %v", childCols)
	}

	for _, id := range []int64{parent.ID, child.ID} {
		tags, err := store.TagsForItem(ctx, id)
		if err != nil {
			t.Fatalf("TagsForItem: %v", err)
		}
		if len(tags) != 2 || tags[0] != "A" || tags[1] != "B" {
			t.Fatalf("unexpected tags on item %d: %v", id, tags)
		}
	}
}

func TestUpdateAffectsOnlyRecordedItems(t *testing.T) {
	reg, store, lib := newRegistry(t)
	ctx := context.Background()

	recorded, err := store.CreateItem(ctx, &library.NewItem{LibraryID: lib.ID, ItemType: "webpage"})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	bystander, err := store.CreateItem(ctx, &library.NewItem{LibraryID: lib.ID, ItemType: "webpage"})
	if err != nil {
		t.Fatalf("CreateItem bystander: %v", err)
	}

	reg.Begin("sess", destination.Destination{LibraryID: lib.ID})
	reg.RecordItems("sess", recorded.ID)

	if _, err := reg.Update(ctx, "sess", nil, "tagged"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	tags, err := store.TagsForItem(ctx, bystander.ID)
	if err != nil {
		t.Fatalf("TagsForItem: %v", err)
	}
	if len(tags) != 0 {
		t.Fatalf("bystander must be untouched, got %v", tags)
	}
}

func TestConcurrentBeginsMergeItemLists(t *testing.T) {
	reg, _, lib := newRegistry(t)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			reg.Begin("shared", destination.Destination{LibraryID: lib.ID})
			reg.RecordItems("shared", n)
		}(int64(i + 1))
	}
	wg.Wait()

	snap, ok := reg.Lookup("shared")
	if !ok {
		t.Fatal("session missing")
	}
	if len(snap.ItemIDs) != workers {
		t.Fatalf("expected %d recorded items, got %v", workers, snap.ItemIDs)
	}
	seen := make(map[int64]bool)
	for _, id := range snap.ItemIDs {
		seen[id] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected union of all recorded items, got %v", snap.ItemIDs)
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	reg, _, lib := newRegistry(t)

	reg.Begin("old", destination.Destination{LibraryID: lib.ID})

	if n := reg.Sweep(time.Now()); n != 0 {
		t.Fatalf("fresh session must survive sweep, evicted %d", n)
	}
	if n := reg.Sweep(time.Now().Add(2 * time.Hour)); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}

	if _, ok := reg.Lookup("old"); ok {
		t.Fatal("evicted session still visible")
	}
	if _, err := reg.Update(context.Background(), "old", nil, "x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("update after eviction must be not found, got %v", err)
	}
}

func TestSweepEnforcesCap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sessions.MaxSessions = 2
	store := testsupport.MustOpenStore(t, cfg)
	lib := testsupport.MustDefaultLibrary(t, store)
	reg := session.NewRegistry(store, cfg, logging.NewNop())

	for i := 0; i < 4; i++ {
		reg.Begin(fmt.Sprintf("s%d", i), destination.Destination{LibraryID: lib.ID})
	}

	if n := reg.Sweep(time.Now()); n != 2 {
		t.Fatalf("expected 2 evictions to enforce cap, got %d", n)
	}
	if got := len(reg.Snapshots()); got != 2 {
		t.Fatalf("expected 2 surviving sessions, got %d", got)
	}
}

func TestParseTags(t *testing.T) {
	got := session.ParseTags(" A, B ,,  C ")
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("ParseTags = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParseTags = %v, want %v", got, want)
		}
	}
	if tags := session.ParseTags("  "); tags != nil {
		t.Fatalf("blank input should yield nil, got %v", tags)
	}
}
