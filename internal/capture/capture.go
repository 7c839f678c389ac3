// Package capture orchestrates save requests from the browser
// extension: it resolves the destination, opens or reuses the save
// session, deproxifies URLs, and hands drafts to the materializer.
package capture

import (
	"context"
	"fmt"
	"log/slog"

	"folio/internal/config"
	"folio/internal/destination"
	"folio/internal/importer"
	"folio/internal/library"
	"folio/internal/logging"
	"folio/internal/materialize"
	"folio/internal/notifications"
	"folio/internal/proxy"
	"folio/internal/services"
	"folio/internal/session"
	"folio/internal/translation"
)

// Dispatcher routes connector operations to the domain services.
type Dispatcher struct {
	store        *library.Store
	sessions     *session.Registry
	materializer *materialize.Materializer
	translators  translation.Engine
	importers    *importer.Registry
	notifier     notifications.Service
	logger       *slog.Logger
}

// New wires a dispatcher from its collaborators.
func New(
	store *library.Store,
	sessions *session.Registry,
	materializer *materialize.Materializer,
	translators translation.Engine,
	importers *importer.Registry,
	notifier notifications.Service,
	cfg *config.Config,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:        store,
		sessions:     sessions,
		materializer: materializer,
		translators:  translators,
		importers:    importers,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "capture"),
	}
}

// SaveItemsRequest is the payload of a saveItems call: translated item
// drafts plus the page they came from.
type SaveItemsRequest struct {
	SessionID string            `json:"sessionID"`
	URI       string            `json:"uri"`
	Items     []*library.Draft  `json:"items"`
	Proxy     *proxy.Descriptor `json:"proxy,omitempty"`
}

// SaveSnapshotRequest is the payload of a saveSnapshot call. HTML may
// be empty, in which case the page is fetched. PDF marks the URL as a
// suspected PDF resource.
type SaveSnapshotRequest struct {
	SessionID string            `json:"sessionID"`
	URL       string            `json:"url"`
	HTML      string            `json:"html,omitempty"`
	PDF       bool              `json:"pdf,omitempty"`
	Proxy     *proxy.Descriptor `json:"proxy,omitempty"`
}

// SavePageRequest asks the daemon to translate the page itself.
type SavePageRequest struct {
	SessionID string            `json:"sessionID"`
	URI       string            `json:"uri"`
	HTML      string            `json:"html"`
	Proxy     *proxy.Descriptor `json:"proxy,omitempty"`
}

// SavedItem is one created item in a save response.
type SavedItem struct {
	ID       int64  `json:"id"`
	Key      string `json:"key"`
	ItemType string `json:"itemType"`
	Title    string `json:"title"`
	ParentID *int64 `json:"parentID,omitempty"`
}

// SaveResult reports where a save landed and what it created. Save
// responses carry only the item summaries; the destination stays
// server-side bookkeeping so clients observe fallback substitution
// through the items themselves.
type SaveResult struct {
	SessionID    string
	LibraryID    int64
	CollectionID *int64
	Items        []SavedItem
	Failures     []FailedAttachment
}

// FailedAttachment reports one attachment that could not be fetched.
type FailedAttachment struct {
	Title  string
	URL    string
	Reason string
}

// SelectedCollection describes the destination the desktop client has
// focused, as reported to the extension.
type SelectedCollection struct {
	LibraryID      int64  `json:"libraryID"`
	LibraryName    string `json:"libraryName"`
	Editable       bool   `json:"libraryEditable"`
	CollectionID   *int64 `json:"id,omitempty"`
	CollectionName string `json:"name,omitempty"`
}

// SaveItems persists pre-translated drafts. Item and attachment URLs
// are deproxified with the request's proxy descriptor before storage.
func (d *Dispatcher) SaveItems(ctx context.Context, req *SaveItemsRequest) (*SaveResult, error) {
	if len(req.Items) == 0 {
		return nil, services.Wrap(services.ErrValidation, "capture", "save items", "no items in request", nil)
	}
	scheme, err := proxy.CompileDescriptor(req.Proxy)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "capture", "save items", "", err)
	}
	for _, draft := range req.Items {
		if err := materialize.ValidateDraft(draft); err != nil {
			return nil, err
		}
	}

	dest, err := d.resolveDestination(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	d.sessions.Begin(req.SessionID, dest)

	result := &SaveResult{
		SessionID:    req.SessionID,
		LibraryID:    dest.LibraryID,
		CollectionID: dest.CollectionID,
	}
	for _, draft := range req.Items {
		deproxify(draft, scheme)
		saved, err := d.materializer.Materialize(ctx, draft, dest)
		if err != nil {
			return nil, err
		}
		d.record(req.SessionID, result, saved)
		_ = d.notifier.NotifySaveCompleted(ctx, saved.Parent.Title, len(saved.Attachments))
	}

	d.logger.Info("items saved",
		logging.String(logging.FieldSessionID, req.SessionID),
		logging.Int("count", len(req.Items)),
		logging.Int64(logging.FieldLibraryID, dest.LibraryID),
	)
	return result, nil
}

// SaveSnapshot stores the page itself. A URL flagged as PDF is fetched
// and imported as a standalone PDF with a synthesized parent; when the
// resource turns out not to be a PDF the call falls through to the
// snapshot path.
func (d *Dispatcher) SaveSnapshot(ctx context.Context, req *SaveSnapshotRequest) (*SaveResult, error) {
	scheme, err := proxy.CompileDescriptor(req.Proxy)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "capture", "save snapshot", "", err)
	}
	pageURL := scheme.Resolve(req.URL)

	dest, err := d.resolveDestination(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	d.sessions.Begin(req.SessionID, dest)

	result := &SaveResult{
		SessionID:    req.SessionID,
		LibraryID:    dest.LibraryID,
		CollectionID: dest.CollectionID,
	}

	if req.PDF {
		saved, isPDF, err := d.materializer.ImportRemotePDF(ctx, pageURL, dest)
		if err != nil {
			return nil, err
		}
		if isPDF {
			d.record(req.SessionID, result, saved)
			_ = d.notifier.NotifySaveCompleted(ctx, saved.Parent.Title, len(saved.Attachments))
			return result, nil
		}
	}

	saved, err := d.materializer.SavePageSnapshot(ctx, pageURL, req.HTML, dest)
	if err != nil {
		return nil, err
	}
	d.record(req.SessionID, result, saved)
	_ = d.notifier.NotifySaveCompleted(ctx, saved.Parent.Title, len(saved.Attachments))
	return result, nil
}

// SavePage translates the submitted page server-side and saves the
// resulting drafts. No matching translator is a hard failure.
func (d *Dispatcher) SavePage(ctx context.Context, req *SavePageRequest) (*SaveResult, error) {
	scheme, err := proxy.CompileDescriptor(req.Proxy)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "capture", "save page", "", err)
	}
	pageURL := scheme.Resolve(req.URI)

	drafts, err := d.translators.Run(ctx, pageURL, req.HTML)
	if err != nil {
		return nil, err
	}

	items := &SaveItemsRequest{
		SessionID: req.SessionID,
		URI:       req.URI,
		Items:     drafts,
		Proxy:     req.Proxy,
	}
	return d.SaveItems(ctx, items)
}

// Import parses a bibliographic payload and saves every item it
// yields.
func (d *Dispatcher) Import(ctx context.Context, sessionID, contentType string, body []byte) (*SaveResult, error) {
	drafts, err := d.importers.Parse(ctx, contentType, body)
	if err != nil {
		return nil, err
	}

	dest, err := d.resolveDestination(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	d.sessions.Begin(sessionID, dest)

	result := &SaveResult{
		SessionID:    sessionID,
		LibraryID:    dest.LibraryID,
		CollectionID: dest.CollectionID,
	}
	for _, draft := range drafts {
		saved, err := d.materializer.Materialize(ctx, draft, dest)
		if err != nil {
			return nil, err
		}
		d.record(sessionID, result, saved)
	}

	_ = d.notifier.NotifyImportCompleted(ctx, len(result.Items))
	d.logger.Info("items imported",
		logging.String(logging.FieldSessionID, sessionID),
		logging.Int("count", len(result.Items)),
	)
	return result, nil
}

// UpdateSession retargets a session's items. The target token selects
// a collection ("C<id>") or a library root ("L<id>"); tags is a
// comma-separated list applied to every session item.
func (d *Dispatcher) UpdateSession(ctx context.Context, sessionID, target, tags string) ([]int64, error) {
	if sessionID == "" {
		return nil, services.Wrap(services.ErrValidation, "capture", "update session", "sessionID is required", nil)
	}

	var collectionID *int64
	if target != "" {
		isCollection, id, err := destination.ParseTarget(target)
		if err != nil {
			return nil, err
		}
		if isCollection {
			col, err := d.store.CollectionByID(ctx, id)
			if err != nil {
				return nil, services.Wrap(nil, "capture", "update session", "load collection", err)
			}
			if col == nil {
				return nil, services.Wrap(services.ErrValidation, "capture", "update session",
					fmt.Sprintf("unknown collection %d", id), nil)
			}
			collectionID = &col.ID
		} else {
			lib, err := d.store.LibraryByID(ctx, id)
			if err != nil {
				return nil, services.Wrap(nil, "capture", "update session", "load library", err)
			}
			if lib == nil {
				return nil, services.Wrap(services.ErrValidation, "capture", "update session",
					fmt.Sprintf("unknown library %d", id), nil)
			}
		}
	}

	affected, err := d.sessions.Update(ctx, sessionID, collectionID, tags)
	if err != nil {
		return nil, err
	}
	d.logger.Info("session updated",
		logging.String(logging.FieldSessionID, sessionID),
		logging.Int("items", len(affected)),
	)
	return affected, nil
}

// DetectedTranslator is one detect candidate, carrying the proxy
// descriptor inferred from the request URI.
type DetectedTranslator struct {
	translation.TranslatorRef
	Proxy *proxy.Descriptor `json:"proxy,omitempty"`
}

// Detect reports the translators that could handle the page, each
// annotated with the proxy scheme the URI's shape reveals.
func (d *Dispatcher) Detect(ctx context.Context, uri, html string) ([]DetectedTranslator, error) {
	refs, err := d.translators.Detect(ctx, uri, html)
	if err != nil {
		return nil, err
	}
	desc := proxy.DetectDescriptor(uri)
	out := make([]DetectedTranslator, 0, len(refs))
	for _, ref := range refs {
		out = append(out, DetectedTranslator{TranslatorRef: ref, Proxy: desc})
	}
	return out, nil
}

// TranslatorCode returns a translator's source by identifier.
func (d *Dispatcher) TranslatorCode(translatorID string) (string, error) {
	code, ok := d.translators.Code(translatorID)
	if !ok {
		return "", services.Wrap(services.ErrNotFound, "capture", "translator code",
			"unknown translator "+translatorID, nil)
	}
	return code, nil
}

// SelectedCollection reports the active destination to the extension.
func (d *Dispatcher) SelectedCollection(ctx context.Context) (*SelectedCollection, error) {
	sel, err := d.store.Selection(ctx)
	if err != nil {
		return nil, services.Wrap(nil, "capture", "selected collection", "", err)
	}
	lib, err := d.store.LibraryByID(ctx, sel.LibraryID)
	if err != nil {
		return nil, services.Wrap(nil, "capture", "selected collection", "load library", err)
	}
	if lib == nil {
		return nil, services.Wrap(services.ErrNotFound, "capture", "selected collection",
			fmt.Sprintf("library %d missing", sel.LibraryID), nil)
	}

	out := &SelectedCollection{
		LibraryID:   lib.ID,
		LibraryName: lib.Name,
		Editable:    !lib.ReadOnly,
	}
	if sel.CollectionID != nil {
		col, err := d.store.CollectionByID(ctx, *sel.CollectionID)
		if err != nil {
			return nil, services.Wrap(nil, "capture", "selected collection", "load collection", err)
		}
		if col != nil {
			out.CollectionID = &col.ID
			out.CollectionName = col.Name
		}
	}
	return out, nil
}

// resolveDestination picks where a save lands: an existing session
// keeps its destination; otherwise the client's current selection is
// used, substituting the default library when the target is not
// writable.
func (d *Dispatcher) resolveDestination(ctx context.Context, sessionID string) (destination.Destination, error) {
	if sessionID != "" {
		if dest, ok := d.sessions.Destination(sessionID); ok {
			return dest, nil
		}
	}

	sel, err := d.store.Selection(ctx)
	if err != nil {
		return destination.Destination{}, services.Wrap(nil, "capture", "resolve destination", "", err)
	}
	libs, err := d.store.Libraries(ctx)
	if err != nil {
		return destination.Destination{}, services.Wrap(nil, "capture", "resolve destination", "list libraries", err)
	}

	writable := make(map[int64]bool, len(libs))
	var defaultID int64
	for _, lib := range libs {
		writable[lib.ID] = !lib.ReadOnly
		if lib.Name == library.DefaultLibraryName {
			defaultID = lib.ID
		}
	}
	if defaultID == 0 {
		return destination.Destination{}, services.Wrap(services.ErrConfiguration, "capture", "resolve destination",
			"default library missing", nil)
	}

	requested := destination.Destination{LibraryID: sel.LibraryID, CollectionID: sel.CollectionID}
	return destination.Select(&requested, requested, writable, defaultID), nil
}

// record registers created items with the session and appends them to
// the response.
func (d *Dispatcher) record(sessionID string, result *SaveResult, saved *materialize.Result) {
	d.sessions.RecordItems(sessionID, saved.ItemIDs()...)
	for _, item := range append([]*library.Item{saved.Parent}, saved.Attachments...) {
		result.Items = append(result.Items, SavedItem{
			ID:       item.ID,
			Key:      item.Key,
			ItemType: item.ItemType,
			Title:    item.Title,
			ParentID: item.ParentID,
		})
	}
	for _, failure := range saved.Failures {
		result.Failures = append(result.Failures, FailedAttachment{
			Title:  failure.Title,
			URL:    failure.URL,
			Reason: failure.Reason,
		})
	}
}

// deproxify rewrites the draft's URLs to their canonical form.
func deproxify(draft *library.Draft, scheme *proxy.Scheme) {
	if scheme == nil {
		return
	}
	draft.URL = scheme.Resolve(draft.URL)
	for i := range draft.Attachments {
		draft.Attachments[i].URL = scheme.Resolve(draft.Attachments[i].URL)
	}
}
