package pipeline

import (
	"context"

	"intelscan/pkg/models"
)

// Source yields raw scan-event payloads. Pop returns nil, nil when nothing
// arrived before its wait expired.
type Source interface {
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

// ResultWriter persists aggregated scan results.
type ResultWriter interface {
	WriteResults(results []*models.ScanResult) error
	Close() error
}

// MatchWriter persists flattened entity x platform rows.
type MatchWriter interface {
	WriteMatches(rows []*models.MatchRow) error
	Close() error
}

// ResultStore keeps the latest aggregated result per page.
type ResultStore interface {
	Latest(ctx context.Context, pageURL string) (*models.ScanResult, error)
	Save(ctx context.Context, result *models.ScanResult) (bool, error)
	Close() error
}
