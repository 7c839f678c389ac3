// Package recognize extracts bibliographic metadata from imported
// PDFs. Attachments are queued after import and processed in the
// background; the save response never waits on recognition.
package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"folio/internal/config"
	"folio/internal/services"
)

// Metadata is the recognizer service's verdict for one PDF.
type Metadata struct {
	Title    string   `json:"title"`
	ItemType string   `json:"itemType"`
	Creators []Author `json:"authors"`
	Date     string   `json:"date"`
	DOI      string   `json:"doi"`
	Abstract string   `json:"abstract"`
}

// Author names one recognized contributor.
type Author struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Recognizer turns a stored PDF into bibliographic metadata.
type Recognizer interface {
	Recognize(ctx context.Context, pdfPath string) (*Metadata, error)
}

// HTTPRecognizer posts PDF bodies to the configured recognizer
// endpoint.
type HTTPRecognizer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPRecognizer builds a recognizer client from config.
func NewHTTPRecognizer(cfg *config.Config) *HTTPRecognizer {
	timeout := time.Duration(cfg.Recognizer.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &HTTPRecognizer{
		endpoint: cfg.Recognizer.Endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Recognize uploads the PDF and decodes the service's metadata
// response.
func (r *HTTPRecognizer) Recognize(ctx context.Context, pdfPath string) (*Metadata, error) {
	body, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, services.Wrap(services.ErrRecognition, "recognize", "read pdf", pdfPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrRecognition, "recognize", "build request", "", err)
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrRecognition, "recognize", "post pdf", r.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrRecognition, "recognize", "post pdf",
			fmt.Sprintf("recognizer returned status %d", resp.StatusCode), nil)
	}

	var meta Metadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&meta); err != nil {
		return nil, services.Wrap(services.ErrRecognition, "recognize", "decode response", "", err)
	}
	if meta.Title == "" {
		return nil, services.Wrap(services.ErrRecognition, "recognize", "decode response", "no title recognized", nil)
	}
	return &meta, nil
}
