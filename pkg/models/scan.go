package models

import "time"

// DetectionRecord is a candidate record reported by a platform adapter for one
// scan. MatchedString is the literal page substring that triggered it.
type DetectionRecord struct {
	ID              string                 `json:"id,omitempty"`
	Type            string                 `json:"type"`
	Name            string                 `json:"name,omitempty"`
	Value           string                 `json:"value,omitempty"`
	Found           bool                   `json:"found"`
	PlatformID      string                 `json:"platform_id,omitempty"`
	PlatformType    string                 `json:"platform_type,omitempty"`
	EntityID        string                 `json:"entity_id,omitempty"`
	EntityData      map[string]interface{} `json:"entity_data,omitempty"`
	MatchedString   string                 `json:"matched_string,omitempty"`
	PlatformMatches []PlatformMatch        `json:"platform_matches,omitempty"`
	MatchedStrings  []string               `json:"matched_strings,omitempty"`
}

// AICandidate is an entity suggested by an AI pass over the page.
type AICandidate struct {
	Type       string  `json:"type"`
	Name       string  `json:"name,omitempty"`
	Value      string  `json:"value"`
	Reason     string  `json:"reason,omitempty"`
	Confidence string  `json:"confidence,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// ScanBatches groups one scan's detection records by origin.
type ScanBatches struct {
	Observables        []DetectionRecord `json:"observables,omitempty"`
	DomainObjects      []DetectionRecord `json:"domain_objects,omitempty"`
	Vulnerabilities    []DetectionRecord `json:"vulnerabilities,omitempty"`
	SimulationEntities []DetectionRecord `json:"simulation_entities,omitempty"`
	AIEntities         []AICandidate     `json:"ai_entities,omitempty"`
}

// ScanResultEntity is the deduplicated, UI-facing record for one logical entity.
type ScanResultEntity struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Name            string          `json:"name"`
	Value           string          `json:"value,omitempty"`
	Found           bool            `json:"found"`
	PlatformMatches []PlatformMatch `json:"platform_matches"`
	MatchedStrings  []string        `json:"matched_strings"`
	DiscoveredByAI  bool            `json:"discovered_by_ai,omitempty"`
	AIReason        string          `json:"ai_reason,omitempty"`
	AIConfidence    string          `json:"ai_confidence,omitempty"`
}

// ScanEvent is one "scan results received" event.
type ScanEvent struct {
	ScanID    string      `json:"scan_id"`
	PageURL   string      `json:"page_url,omitempty"`
	Sequence  int64       `json:"seq"`
	Timestamp time.Time   `json:"ts"`
	Text      string      `json:"text,omitempty"`
	Batches   ScanBatches `json:"batches"`
}

// ScanResult is the aggregated output of one scan event.
type ScanResult struct {
	ScanID    string             `json:"scan_id"`
	PageURL   string             `json:"page_url,omitempty"`
	Sequence  int64              `json:"seq"`
	Timestamp time.Time          `json:"ts"`
	Entities  []ScanResultEntity `json:"entities"`
}

// MatchRow is a flattened entity x platform row for time-series sinks.
type MatchRow struct {
	Timestamp    time.Time `json:"ts"`
	ScanID       string    `json:"scan_id"`
	PageURL      string    `json:"page_url,omitempty"`
	EntityKey    string    `json:"entity_id"`
	EntityType   string    `json:"entity_type"`
	Name         string    `json:"name"`
	PlatformID   string    `json:"platform_id,omitempty"`
	PlatformType string    `json:"platform_type,omitempty"`
	MatchType    string    `json:"match_type,omitempty"`
	Found        bool      `json:"found"`
}

// MatchRows flattens the result into one row per platform match, or a single
// row for entities without platform matches.
func (r *ScanResult) MatchRows() []*MatchRow {
	if r == nil {
		return nil
	}
	rows := make([]*MatchRow, 0, len(r.Entities))
	for _, e := range r.Entities {
		base := MatchRow{
			Timestamp:  r.Timestamp,
			ScanID:     r.ScanID,
			PageURL:    r.PageURL,
			EntityKey:  e.ID,
			EntityType: e.Type,
			Name:       e.Name,
			Found:      e.Found,
		}
		if len(e.PlatformMatches) == 0 {
			row := base
			rows = append(rows, &row)
			continue
		}
		for _, pm := range e.PlatformMatches {
			row := base
			row.PlatformID = pm.PlatformID
			row.PlatformType = pm.PlatformType
			row.MatchType = pm.Type
			rows = append(rows, &row)
		}
	}
	return rows
}
