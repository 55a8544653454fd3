// Package resulthttp posts aggregated scan results to an HTTP endpoint.
package resulthttp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"intelscan/internal/transport/httpjson"
	"intelscan/pkg/models"
)

// Config configures the HTTP writer.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Writer sends result batches as a JSON array.
type Writer struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWriter creates an HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("http result URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// WriteResults posts a batch of results.
func (w *Writer) WriteResults(results []*models.ScanResult) error {
	if len(results) == 0 {
		return nil
	}

	if err := httpjson.PostJSON(context.Background(), w.client, w.url, w.headers, results, nil); err != nil {
		return fmt.Errorf("failed to post scan results: %w", err)
	}
	return nil
}

// Close releases HTTP resources.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
