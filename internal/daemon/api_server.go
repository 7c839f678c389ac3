package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"folio/internal/capture"
	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/services"
	"folio/internal/session"
)

// maxRequestBody bounds connector payloads; snapshots of heavy pages
// can run to tens of megabytes.
const maxRequestBody = 64 << 20

// serverVersion is reported on /connector/ping.
const serverVersion = "0.1.0"

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// handler builds the route table. Connector routes are unauthenticated
// because the server binds to loopback; the management routes under
// /api/ honor the optional bearer token.
func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/connector/ping", s.handlePing)
	mux.HandleFunc("/connector/saveItems", s.handleSaveItems)
	mux.HandleFunc("/connector/saveSnapshot", s.handleSaveSnapshot)
	mux.HandleFunc("/connector/savePage", s.handleSavePage)
	mux.HandleFunc("/connector/import", s.handleImport)
	mux.HandleFunc("/connector/updateSession", s.handleUpdateSession)
	mux.HandleFunc("/connector/detect", s.handleDetect)
	mux.HandleFunc("/connector/getTranslatorCode", s.handleGetTranslatorCode)
	mux.HandleFunc("/connector/getSelectedCollection", s.handleGetSelectedCollection)

	mux.HandleFunc("/api/status", authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("/api/sessions", authMiddleware(s.token, s.handleSessions))

	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", s.bind, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("connector server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handlePing(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "<html><body>Folio Connector Server is Available</body></html>")
	case http.MethodPost:
		s.writeJSON(w, http.StatusOK, map[string]any{
			"version": serverVersion,
			"prefs":   map[string]any{},
		})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleSaveItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req capture.SaveItemsRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.daemon.dispatcher.SaveItems(r.Context(), &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, savedItems(result))
}

func (s *apiServer) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req capture.SaveSnapshotRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.daemon.dispatcher.SaveSnapshot(r.Context(), &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, savedItems(result))
}

func (s *apiServer) handleSavePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req capture.SavePageRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.daemon.dispatcher.SavePage(r.Context(), &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"items": savedItems(result)})
}

func (s *apiServer) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	sessionID := r.URL.Query().Get("session")
	result, err := s.daemon.dispatcher.Import(r.Context(), sessionID, r.Header.Get("Content-Type"), body)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, savedItems(result))
}

func (s *apiServer) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		SessionID string `json:"sessionID"`
		Target    string `json:"target"`
		Tags      string `json:"tags"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	affected, err := s.daemon.dispatcher.UpdateSession(r.Context(), req.SessionID, req.Target, req.Tags)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"updated": len(affected)})
}

func (s *apiServer) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		URI  string `json:"uri"`
		HTML string `json:"html"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	refs, err := s.daemon.dispatcher.Detect(r.Context(), req.URI, req.HTML)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if refs == nil {
		refs = []capture.DetectedTranslator{}
	}
	s.writeJSON(w, http.StatusOK, refs)
}

func (s *apiServer) handleGetTranslatorCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		TranslatorID string `json:"translatorID"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	code, err := s.daemon.dispatcher.TranslatorCode(req.TranslatorID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"translatorID": req.TranslatorID,
		"code":         code,
	})
}

func (s *apiServer) handleGetSelectedCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sel, err := s.daemon.dispatcher.SelectedCollection(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sel)
}

type statusResponse struct {
	Running            bool   `json:"running"`
	Address            string `json:"address"`
	DatabasePath       string `json:"databasePath"`
	Sessions           int    `json:"sessions"`
	Libraries          int    `json:"libraries"`
	Collections        int    `json:"collections"`
	Items              int    `json:"items"`
	Attachments        int    `json:"attachments"`
	PendingAttachments int    `json:"pendingAttachments"`
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, statusResponse{
		Running:            status.Running,
		Address:            status.Address,
		DatabasePath:       status.DatabasePath,
		Sessions:           status.Sessions,
		Libraries:          status.Library.Libraries,
		Collections:        status.Library.Collections,
		Items:              status.Library.Items,
		Attachments:        status.Library.Attachments,
		PendingAttachments: status.Library.PendingAttachments,
	})
}

type sessionResponse struct {
	ID           string  `json:"id"`
	LibraryID    int64   `json:"libraryID"`
	CollectionID *int64  `json:"collectionID,omitempty"`
	ItemIDs      []int64 `json:"itemIDs"`
	CreatedAt    string  `json:"createdAt"`
	LastUsed     string  `json:"lastUsed"`
}

func (s *apiServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snaps := s.daemon.sessions.Snapshots()
	out := make([]sessionResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, sessionSummary(snap))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func sessionSummary(snap session.Snapshot) sessionResponse {
	ids := snap.ItemIDs
	if ids == nil {
		ids = []int64{}
	}
	return sessionResponse{
		ID:           snap.ID,
		LibraryID:    snap.Destination.LibraryID,
		CollectionID: snap.Destination.CollectionID,
		ItemIDs:      ids,
		CreatedAt:    snap.CreatedAt.UTC().Format(time.RFC3339),
		LastUsed:     snap.LastUsed.UTC().Format(time.RFC3339),
	}
}

// savedItems extracts the wire payload of a save response: a bare
// array of item summaries, never null.
func savedItems(result *capture.SaveResult) []capture.SavedItem {
	if result == nil || result.Items == nil {
		return []capture.SavedItem{}
	}
	return result.Items
}

// decode reads a JSON request body, replying 400 on malformed input.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", logging.Error(err))
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
