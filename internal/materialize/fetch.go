package materialize

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"folio/internal/config"
	"folio/internal/services"
)

// Fetcher retrieves attachment bodies with the limits from config.
type Fetcher struct {
	client    *http.Client
	maxBody   int64
	userAgent string
}

// FetchResult is a retrieved resource. HTML bodies declared in a
// non-UTF-8 charset are decoded to UTF-8.
type FetchResult struct {
	Body        []byte
	ContentType string
}

// NewFetcher builds a fetcher from config limits.
func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		},
		maxBody:   int64(cfg.Fetch.MaxBodyMiB) * 1024 * 1024,
		userAgent: cfg.Fetch.UserAgent,
	}
}

// Fetch retrieves a URL. Failures are tagged ErrUpstreamFetch so the
// caller can record them as partial failures.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "materialize", "fetch", "build request for "+url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "materialize", "fetch", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrUpstreamFetch, "materialize", "fetch",
			fmt.Sprintf("%s returned status %d", url, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "materialize", "fetch", "read body of "+url, err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, services.Wrap(services.ErrUpstreamFetch, "materialize", "fetch",
			fmt.Sprintf("%s exceeds %d byte limit", url, f.maxBody), nil)
	}

	mediaType, params := parseContentType(resp.Header.Get("Content-Type"))
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = sniffContentType(body)
	}
	if strings.HasPrefix(mediaType, "text/") {
		body = decodeCharset(body, params["charset"])
	}

	return &FetchResult{Body: body, ContentType: mediaType}, nil
}

func parseContentType(header string) (string, map[string]string) {
	if header == "" {
		return "", nil
	}
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		return "", nil
	}
	return mediaType, params
}

func sniffContentType(body []byte) string {
	if IsPDF(body, "") {
		return "application/pdf"
	}
	mediaType, _, err := mime.ParseMediaType(http.DetectContentType(body))
	if err != nil {
		return "application/octet-stream"
	}
	return mediaType
}

// decodeCharset converts a body declared in a non-UTF-8 charset to
// UTF-8, returning the input unchanged when the charset is unknown.
func decodeCharset(body []byte, charset string) []byte {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return body
	}
	enc, err := htmlindex.Get(charset)
	if err != nil || enc == nil {
		return body
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return body
	}
	return decoded
}

// IsPDF reports whether the resource is a PDF by declared type or
// magic bytes.
func IsPDF(body []byte, contentType string) bool {
	if contentType == "application/pdf" {
		return true
	}
	return bytes.HasPrefix(body, []byte("%PDF-"))
}

// IsHTML reports whether the resource is an HTML page.
func IsHTML(contentType string) bool {
	return contentType == "text/html" || contentType == "application/xhtml+xml"
}
