package recognize

import (
	"context"
	"log/slog"

	"folio/internal/config"
	"folio/internal/library"
	"folio/internal/logging"
	"folio/internal/notifications"
)

// Queue drains imported PDF attachments through the recognizer and
// applies the results. Processing is fire-and-forget relative to the
// save that enqueued the attachment.
type Queue struct {
	ch         chan int64
	store      *library.Store
	recognizer Recognizer
	notifier   notifications.Service
	logger     *slog.Logger
}

// NewQueue constructs a queue sized from config. recognizer may be nil
// when recognition is disabled; Enqueue then drops silently.
func NewQueue(store *library.Store, recognizer Recognizer, notifier notifications.Service, cfg *config.Config, logger *slog.Logger) *Queue {
	size := cfg.Recognizer.QueueSize
	if size <= 0 {
		size = 32
	}
	return &Queue{
		ch:         make(chan int64, size),
		store:      store,
		recognizer: recognizer,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "recognize"),
	}
}

// Enqueue submits an attachment item for recognition without
// blocking. Returns false when the queue is full or disabled.
func (q *Queue) Enqueue(itemID int64) bool {
	if q == nil || q.recognizer == nil {
		return false
	}
	select {
	case q.ch <- itemID:
		return true
	default:
		return false
	}
}

// Run processes queued attachments until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	if q.recognizer == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case itemID := <-q.ch:
			q.Process(ctx, itemID)
		}
	}
}

// Process recognizes one attachment and applies the metadata. The
// update is best-effort: an attachment that was deleted, detached from
// its synthesized parent, or attached to a real parent in the interim
// is skipped silently. Recognition failures are logged and never
// retried here.
func (q *Queue) Process(ctx context.Context, itemID int64) {
	logger := q.logger.With(logging.Int64("attachment_id", itemID))

	item, err := q.store.ItemByID(ctx, itemID)
	if err != nil {
		logger.Warn("load attachment", logging.Error(err))
		return
	}
	if item == nil || !item.IsAttachment() {
		return
	}
	att, err := q.store.AttachmentByItem(ctx, itemID)
	if err != nil {
		logger.Warn("load attachment metadata", logging.Error(err))
		return
	}
	if att == nil || att.Status != library.AttachmentDone || att.Path == "" {
		return
	}

	meta, err := q.recognizer.Recognize(ctx, att.Path)
	if err != nil {
		logger.Warn("recognition failed", logging.Error(err))
		if q.notifier != nil {
			_ = q.notifier.NotifyError(ctx, err, "pdf recognition")
		}
		return
	}

	if err := q.apply(ctx, item, meta); err != nil {
		logger.Warn("apply recognition result", logging.Error(err))
		return
	}
	logger.Info("pdf recognized", logging.String("title", meta.Title))
	if q.notifier != nil {
		_ = q.notifier.NotifyRecognitionCompleted(ctx, meta.Title)
	}
}

// apply attaches recognized metadata: a parentless PDF gains a new
// parent item; a PDF under a synthesized webpage parent enriches that
// parent in place; anything else is left alone.
func (q *Queue) apply(ctx context.Context, item *library.Item, meta *Metadata) error {
	itemType := meta.ItemType
	if itemType == "" {
		itemType = "journalArticle"
	}
	creators := make([]library.Creator, 0, len(meta.Creators))
	for _, a := range meta.Creators {
		creators = append(creators, library.Creator{
			CreatorType: "author",
			FirstName:   a.FirstName,
			LastName:    a.LastName,
		})
	}
	fields := map[string]string{}
	if meta.Date != "" {
		fields["date"] = meta.Date
	}
	if meta.DOI != "" {
		fields["DOI"] = meta.DOI
	}
	if meta.Abstract != "" {
		fields["abstractNote"] = meta.Abstract
	}

	if item.ParentID == nil {
		parent, err := q.store.CreateItem(ctx, &library.NewItem{
			LibraryID: item.LibraryID,
			ItemType:  itemType,
			Title:     meta.Title,
			URL:       item.URL,
			Fields:    fields,
			Creators:  creators,
		})
		if err != nil {
			return err
		}
		if err := q.store.Reparent(ctx, item.ID, parent.ID); err != nil {
			return err
		}
		return q.store.MoveCollections(ctx, item.ID, parent.ID)
	}

	parent, err := q.store.ItemByID(ctx, *item.ParentID)
	if err != nil {
		return err
	}
	if parent == nil || parent.ItemType != "webpage" {
		return nil
	}

	parent.ItemType = itemType
	parent.Title = meta.Title
	if err := q.store.UpdateItem(ctx, parent); err != nil {
		return err
	}
	for field, value := range fields {
		if err := q.store.SetField(ctx, parent.ID, field, value); err != nil {
			return err
		}
	}
	if len(creators) > 0 {
		if err := q.store.ReplaceCreators(ctx, parent.ID, creators); err != nil {
			return err
		}
	}
	return nil
}
