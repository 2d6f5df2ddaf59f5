// Package extract turns uploaded sources into plain text. It downloads
// remote documents and extracts text from PDF or plain-text bytes,
// inserting per-page markers that the chunker later uses as high-priority
// split points.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// downloadLimit caps the size of a downloaded document. Legal PDFs run a
// few MB; anything past this is almost certainly not a document upload.
const downloadLimit = 50 << 20

// userAgent is sent on download requests. Some document hosts reject
// requests without a browser-looking agent string.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// ErrUnsupportedType is returned when the content type is neither PDF nor
// plain text. Callers map it to a client error.
var ErrUnsupportedType = errors.New("unsupported content type")

// ErrEmptyDocument is returned when extraction yields no usable text.
var ErrEmptyDocument = errors.New("no text could be extracted from the content")

// Processor downloads and extracts document text.
type Processor struct {
	// client is the HTTP client used for URL downloads.
	client *http.Client
}

// NewProcessor constructs a Processor. timeout bounds each download; zero
// uses 60s, matching the patience a user has for a large PDF fetch.
func NewProcessor(timeout time.Duration) *Processor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Processor{client: &http.Client{Timeout: timeout}}
}

// Download fetches the document at url and returns its raw bytes together
// with the Content-Type reported by the server (lowercased).
func (p *Processor) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("extract: creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("extract: download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("extract: unexpected status %d for %s", resp.StatusCode, url)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, downloadLimit))
	if err != nil {
		return nil, "", fmt.Errorf("extract: reading body: %w", err)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	return content, contentType, nil
}

// Extract converts raw document bytes into plain text based on the MIME
// type. PDF pages are concatenated with "=== Page <n> ===" markers so the
// chunker can prefer page boundaries. Returns ErrUnsupportedType for any
// other content type and ErrEmptyDocument when nothing usable comes out.
func (p *Processor) Extract(content []byte, contentType string) (string, error) {
	var text string
	switch {
	case strings.Contains(contentType, "application/pdf"):
		var err error
		text, err = extractPDF(content)
		if err != nil {
			return "", fmt.Errorf("extract: failed to parse PDF: %w", err)
		}

	case strings.Contains(contentType, "text/plain"):
		text = string(content)

	default:
		return "", fmt.Errorf("extract: %w: %s", ErrUnsupportedType, contentType)
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}

	// NUL bytes confuse downstream text handling; strip them here as well
	// as in the chunker so full-text session storage is clean too.
	cleaned := strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(cleaned), nil
}

// extractPDF pulls plain text out of each PDF page, skipping empty pages
// and prefixing every page's text with its page marker.
func extractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// A single damaged page should not sink the document.
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n=== Page %d ===\n%s\n", i, strings.TrimSpace(pageText))
	}

	return b.String(), nil
}
