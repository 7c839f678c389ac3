package materialize

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"folio/internal/config"
	"folio/internal/destination"
	"folio/internal/library"
	"folio/internal/logging"
	"folio/internal/services"
)

// RecognitionQueue receives imported PDF attachments for background
// metadata recognition.
type RecognitionQueue interface {
	Enqueue(itemID int64) bool
}

// AttachmentFailure records one attachment that could not be fetched.
// Partial failures never fail the owning save.
type AttachmentFailure struct {
	Title  string
	URL    string
	Reason string
}

// Result is the outcome of one materialization: the parent item, its
// attachment items in creation order, and any partial failures.
type Result struct {
	Parent      *library.Item
	Attachments []*library.Item
	Failures    []AttachmentFailure
}

// ItemIDs returns the created item identifiers, parent first.
func (r *Result) ItemIDs() []int64 {
	if r == nil || r.Parent == nil {
		return nil
	}
	ids := make([]int64, 0, 1+len(r.Attachments))
	ids = append(ids, r.Parent.ID)
	for _, att := range r.Attachments {
		ids = append(ids, att.ID)
	}
	return ids
}

// Materializer persists drafts into the library store.
type Materializer struct {
	store          *library.Store
	fetcher        *Fetcher
	recognitions   RecognitionQueue
	attachmentsDir string
	logger         *slog.Logger
}

// New constructs a materializer. recognitions may be nil when PDF
// recognition is disabled.
func New(store *library.Store, fetcher *Fetcher, recognitions RecognitionQueue, cfg *config.Config, logger *slog.Logger) *Materializer {
	return &Materializer{
		store:          store,
		fetcher:        fetcher,
		recognitions:   recognitions,
		attachmentsDir: cfg.Paths.AttachmentsDir,
		logger:         logging.NewComponentLogger(logger, "materialize"),
	}
}

// ValidateDraft checks a draft against the item type and field
// vocabularies. Unknown fields are rejected by name.
func ValidateDraft(draft *library.Draft) error {
	if draft == nil {
		return services.Wrap(services.ErrValidation, "materialize", "validate", "draft is nil", nil)
	}
	if strings.TrimSpace(draft.ItemType) == "" {
		return services.Wrap(services.ErrValidation, "materialize", "validate", "itemType is required", nil)
	}
	if !itemTypes[draft.ItemType] {
		return services.Wrap(services.ErrValidation, "materialize", "validate",
			fmt.Sprintf("unknown item type %q", draft.ItemType), nil)
	}
	for field := range draft.Fields {
		if !itemFields[field] {
			return services.Wrap(services.ErrValidation, "materialize", "validate",
				fmt.Sprintf("unknown field %q", field), nil)
		}
	}
	return nil
}

// Materialize persists one draft at the destination: the parent record
// first, then its attachment items in draft order. Attachment bodies
// are fetched concurrently after all creation events have been
// emitted; a failed fetch marks that attachment failed and the save
// still succeeds.
func (m *Materializer) Materialize(ctx context.Context, draft *library.Draft, dest destination.Destination) (*Result, error) {
	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}

	creators := make([]library.Creator, 0, len(draft.Creators))
	for _, c := range draft.Creators {
		creators = append(creators, c.Creator())
	}

	parent, err := m.store.CreateItem(ctx, &library.NewItem{
		LibraryID: dest.LibraryID,
		ItemType:  draft.ItemType,
		Title:     draft.Title,
		URL:       draft.URL,
		Fields:    draft.Fields,
		Creators:  creators,
		Tags:      draft.Tags,
	})
	if err != nil {
		return nil, services.Wrap(nil, "materialize", "create parent", "", err)
	}
	if err := m.placeInCollection(ctx, parent, dest); err != nil {
		return nil, err
	}

	result := &Result{Parent: parent}

	type fetchJob struct {
		item  *library.Item
		draft library.AttachmentDraft
	}
	var jobs []fetchJob
	for _, ad := range draft.Attachments {
		if strings.TrimSpace(ad.URL) == "" {
			result.Failures = append(result.Failures, AttachmentFailure{
				Title:  ad.Title,
				Reason: "attachment has no url",
			})
			continue
		}
		item, err := m.createAttachmentItem(ctx, parent, ad.Title, ad.URL, ad.MimeType, library.LinkModeImportedURL)
		if err != nil {
			return nil, err
		}
		result.Attachments = append(result.Attachments, item)
		jobs = append(jobs, fetchJob{item: item, draft: ad})
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, job := range jobs {
		wg.Add(1)
		go func(job fetchJob) {
			defer wg.Done()
			if failure := m.fetchInto(ctx, job.item); failure != nil {
				mu.Lock()
				result.Failures = append(result.Failures, *failure)
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()

	return result, nil
}

// SavePageSnapshot creates a webpage parent from the page title and
// attaches the HTML as a snapshot child. When html is empty the page
// is fetched.
func (m *Materializer) SavePageSnapshot(ctx context.Context, pageURL, html string, dest destination.Destination) (*Result, error) {
	if strings.TrimSpace(pageURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "materialize", "snapshot", "url is required", nil)
	}
	if html == "" {
		res, err := m.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		if !IsHTML(res.ContentType) {
			return nil, services.Wrap(services.ErrValidation, "materialize", "snapshot",
				fmt.Sprintf("%s is %s, not a web page", pageURL, res.ContentType), nil)
		}
		html = string(res.Body)
	}

	title := TitleFromHTML(html)
	if title == "" {
		title = pageURL
	}

	parent, err := m.store.CreateItem(ctx, &library.NewItem{
		LibraryID: dest.LibraryID,
		ItemType:  "webpage",
		Title:     title,
		URL:       pageURL,
	})
	if err != nil {
		return nil, services.Wrap(nil, "materialize", "snapshot", "create parent", err)
	}
	if err := m.placeInCollection(ctx, parent, dest); err != nil {
		return nil, err
	}

	child, err := m.createAttachmentItem(ctx, parent, title, pageURL, "text/html", library.LinkModeImportedURL)
	if err != nil {
		return nil, err
	}
	snapshotPath := filepath.Join(m.attachmentsDir, child.Key+".html")
	if err := os.WriteFile(snapshotPath, []byte(html), 0o644); err != nil {
		return nil, services.Wrap(nil, "materialize", "snapshot", "write snapshot", err)
	}
	if err := m.store.MarkAttachmentDone(ctx, child.ID, snapshotPath, "text/html"); err != nil {
		return nil, services.Wrap(nil, "materialize", "snapshot", "record snapshot", err)
	}

	return &Result{Parent: parent, Attachments: []*library.Item{child}}, nil
}

// ImportRemotePDF fetches pageURL and, when it is a PDF, imports it
// under a synthesized webpage parent whose metadata is filled in later
// by the recognition worker. The second return value reports whether
// the resource was a PDF; a non-PDF is not an error so the caller can
// fall through to the snapshot path.
func (m *Materializer) ImportRemotePDF(ctx context.Context, pageURL string, dest destination.Destination) (*Result, bool, error) {
	res, err := m.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, false, err
	}
	if !IsPDF(res.Body, res.ContentType) {
		return nil, false, nil
	}

	parent, err := m.store.CreateItem(ctx, &library.NewItem{
		LibraryID: dest.LibraryID,
		ItemType:  "webpage",
		Title:     pageURL,
		URL:       pageURL,
	})
	if err != nil {
		return nil, true, services.Wrap(nil, "materialize", "import pdf", "create parent", err)
	}
	if err := m.placeInCollection(ctx, parent, dest); err != nil {
		return nil, true, err
	}

	child, err := m.createAttachmentItem(ctx, parent, fileNameFromURL(pageURL), pageURL, "application/pdf", library.LinkModeImportedFile)
	if err != nil {
		return nil, true, err
	}
	pdfPath := filepath.Join(m.attachmentsDir, child.Key+".pdf")
	if err := os.WriteFile(pdfPath, res.Body, 0o644); err != nil {
		return nil, true, services.Wrap(nil, "materialize", "import pdf", "write file", err)
	}
	if err := m.store.MarkAttachmentDone(ctx, child.ID, pdfPath, "application/pdf"); err != nil {
		return nil, true, services.Wrap(nil, "materialize", "import pdf", "record file", err)
	}
	m.enqueueRecognition(child.ID)

	return &Result{Parent: parent, Attachments: []*library.Item{child}}, true, nil
}

// placeInCollection adds the parent to the destination collection. On
// failure the parent is rolled back so nothing is partially committed.
func (m *Materializer) placeInCollection(ctx context.Context, parent *library.Item, dest destination.Destination) error {
	if dest.CollectionID == nil {
		return nil
	}
	if err := m.store.AddToCollection(ctx, *dest.CollectionID, parent.ID); err != nil {
		if _, delErr := m.store.DeleteItem(ctx, parent.ID); delErr != nil {
			m.logger.Warn("rollback of parent failed",
				logging.Int64("parent_id", parent.ID), logging.Error(delErr))
		}
		return services.Wrap(nil, "materialize", "place in collection", "", err)
	}
	return nil
}

func (m *Materializer) createAttachmentItem(ctx context.Context, parent *library.Item, title, attURL, contentType, linkMode string) (*library.Item, error) {
	item, err := m.store.CreateItem(ctx, &library.NewItem{
		LibraryID: parent.LibraryID,
		ItemType:  library.ItemTypeAttachment,
		ParentID:  &parent.ID,
		Title:     title,
		URL:       attURL,
	})
	if err != nil {
		return nil, services.Wrap(nil, "materialize", "create attachment", "", err)
	}
	if err := m.store.UpsertAttachment(ctx, &library.Attachment{
		ItemID:      item.ID,
		ContentType: contentType,
		LinkMode:    linkMode,
		URL:         attURL,
		Status:      library.AttachmentPending,
	}); err != nil {
		return nil, services.Wrap(nil, "materialize", "create attachment", "record metadata", err)
	}
	return item, nil
}

// fetchInto retrieves an attachment's body and stores it. Returns a
// failure record instead of an error: fetch problems are partial
// failures.
func (m *Materializer) fetchInto(ctx context.Context, item *library.Item) *AttachmentFailure {
	res, err := m.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		m.recordFetchFailure(ctx, item, err)
		return &AttachmentFailure{Title: item.Title, URL: item.URL, Reason: err.Error()}
	}

	var (
		ext         string
		contentType string
	)
	switch {
	case IsPDF(res.Body, res.ContentType):
		ext, contentType = ".pdf", "application/pdf"
	case IsHTML(res.ContentType):
		ext, contentType = ".html", "text/html"
	default:
		ext, contentType = extensionFor(res.ContentType), res.ContentType
	}

	storedPath := filepath.Join(m.attachmentsDir, item.Key+ext)
	if err := os.WriteFile(storedPath, res.Body, 0o644); err != nil {
		m.recordFetchFailure(ctx, item, err)
		return &AttachmentFailure{Title: item.Title, URL: item.URL, Reason: err.Error()}
	}
	if err := m.store.MarkAttachmentDone(ctx, item.ID, storedPath, contentType); err != nil {
		m.recordFetchFailure(ctx, item, err)
		return &AttachmentFailure{Title: item.Title, URL: item.URL, Reason: err.Error()}
	}

	if contentType == "application/pdf" {
		m.enqueueRecognition(item.ID)
	}
	return nil
}

func (m *Materializer) recordFetchFailure(ctx context.Context, item *library.Item, err error) {
	m.logger.Warn("attachment fetch failed",
		logging.Int64("attachment_id", item.ID),
		logging.String("url", item.URL),
		logging.Error(err),
	)
	if markErr := m.store.MarkAttachmentFailed(ctx, item.ID, err.Error()); markErr != nil {
		m.logger.Warn("record attachment failure", logging.Error(markErr))
	}
}

func (m *Materializer) enqueueRecognition(itemID int64) {
	if m.recognitions == nil {
		return
	}
	if !m.recognitions.Enqueue(itemID) {
		m.logger.Warn("recognition queue full", logging.Int64("attachment_id", itemID))
	}
}

// TitleFromHTML extracts the page title, empty when none is present.
func TitleFromHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extensionFor(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}

func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return u.Host
	}
	return name
}
