// Package resultjson appends aggregated scan results to a JSON lines file.
package resultjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"intelscan/internal/logger"
	"intelscan/pkg/models"
)

// Writer outputs one scan result per line.
type Writer struct {
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter opens path for appending, creating parent directories.
func NewWriter(path string) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	buf := bufio.NewWriter(f)
	logger.Infof("Scan result JSON writer initialized: %s", path)
	return &Writer{
		file:    f,
		buf:     buf,
		encoder: json.NewEncoder(buf),
	}, nil
}

// WriteResults writes a batch and flushes it to disk.
func (w *Writer) WriteResults(results []*models.ScanResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range results {
		if r == nil {
			continue
		}
		if err := w.encoder.Encode(r); err != nil {
			return fmt.Errorf("failed to encode scan result: %w", err)
		}
	}
	return w.buf.Flush()
}

// Close flushes and closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	err := w.file.Close()
	w.file = nil
	return err
}
