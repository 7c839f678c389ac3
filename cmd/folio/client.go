package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"folio/internal/config"
)

// daemonClient queries the running daemon's management API.
type daemonClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func newDaemonClient(cfg *config.Config) *daemonClient {
	return &daemonClient{
		baseURL: "http://" + strings.TrimSpace(cfg.Paths.APIBind),
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type daemonStatus struct {
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

type sessionInfo struct {
	ID           string  `json:"id"`
	LibraryID    int64   `json:"libraryID"`
	CollectionID *int64  `json:"collectionID,omitempty"`
	ItemIDs      []int64 `json:"itemIDs"`
	CreatedAt    string  `json:"createdAt"`
	LastUsed     string  `json:"lastUsed"`
}

func (c *daemonClient) status() (*daemonStatus, error) {
	var out daemonStatus
	if err := c.get("/api/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *daemonClient) sessions() ([]sessionInfo, error) {
	var out struct {
		Sessions []sessionInfo `json:"sessions"`
	}
	if err := c.get("/api/sessions", &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *daemonClient) get(path string, dst any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("is foliod running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
