// Package matchclickhouse streams entity x platform match rows to ClickHouse
// over the HTTP interface.
package matchclickhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"intelscan/internal/transport/httpjson"
	"intelscan/pkg/models"
)

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Writer inserts match rows with FORMAT JSONEachRow.
type Writer struct {
	base     string
	database string
	table    string
	headers  map[string]string
	client   *http.Client
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "scan_matches"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	headers := map[string]string{}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &Writer{
		base:     strings.TrimRight(cfg.URL, "/"),
		database: cfg.Database,
		table:    cfg.Table,
		headers:  headers,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// CreateTableSQL returns the DDL for the match table.
func (w *Writer) CreateTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  ts DateTime64(3),
  scan_id String,
  page_url String,
  entity_id String,
  entity_type LowCardinality(String),
  name String,
  platform_id LowCardinality(String),
  platform_type LowCardinality(String),
  match_type LowCardinality(String),
  found Bool
) ENGINE = MergeTree ORDER BY (entity_type, name, ts)`, w.qualifiedTable())
}

// EnsureTable creates the match table if it does not exist.
func (w *Writer) EnsureTable() error {
	return w.post(w.CreateTableSQL(), nil)
}

// WriteMatches sends a batch of rows.
func (w *Writer) WriteMatches(rows []*models.MatchRow) error {
	if len(rows) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, row := range rows {
		if row == nil {
			continue
		}
		if err := enc.Encode(chRow{
			Timestamp:    row.Timestamp.UTC().Format("2006-01-02 15:04:05.000"),
			ScanID:       row.ScanID,
			PageURL:      row.PageURL,
			EntityID:     row.EntityKey,
			EntityType:   row.EntityType,
			Name:         row.Name,
			PlatformID:   row.PlatformID,
			PlatformType: row.PlatformType,
			MatchType:    row.MatchType,
			Found:        row.Found,
		}); err != nil {
			return fmt.Errorf("failed to marshal match row: %w", err)
		}
	}
	q := fmt.Sprintf("INSERT INTO %s FORMAT JSONEachRow", w.qualifiedTable())
	return w.post(q, &body)
}

// Close releases resources.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// chRow is the ClickHouse column layout of a match row.
type chRow struct {
	Timestamp    string `json:"ts"`
	ScanID       string `json:"scan_id"`
	PageURL      string `json:"page_url"`
	EntityID     string `json:"entity_id"`
	EntityType   string `json:"entity_type"`
	Name         string `json:"name"`
	PlatformID   string `json:"platform_id"`
	PlatformType string `json:"platform_type"`
	MatchType    string `json:"match_type"`
	Found        bool   `json:"found"`
}

func (w *Writer) post(query string, body io.Reader) error {
	endpoint := w.base + "/?query=" + url.QueryEscape(query)
	if err := httpjson.Post(context.Background(), w.client, endpoint, w.headers, body, nil); err != nil {
		return fmt.Errorf("clickhouse request failed: %w", err)
	}
	return nil
}

func (w *Writer) qualifiedTable() string {
	return quoteIdent(w.database) + "." + quoteIdent(w.table)
}

func quoteIdent(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "`", "")
	return "`" + v + "`"
}
