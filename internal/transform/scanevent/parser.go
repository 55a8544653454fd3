// Package scanevent decodes "scan results received" events from JSON.
package scanevent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"intelscan/internal/logger"
	"intelscan/internal/metrics"
	"intelscan/pkg/models"
)

// Parse converts a scan event payload into a ScanEvent. Field names are
// looked up tolerantly: snake_case, camelCase and a nested "page" object
// are all accepted, and batches may sit under "batches" or at the top level.
func Parse(data []byte) (*models.ScanEvent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	event := &models.ScanEvent{
		ScanID:   getString(raw, "scan_id", "scanId", "id"),
		PageURL:  getString(raw, "page_url", "pageUrl", "page.url", "url"),
		Sequence: getInt64(raw, "seq", "sequence"),
		Text:     getString(raw, "text", "page_text", "pageText", "page.text", "content"),
	}
	event.Timestamp = getTime(raw, "ts", "timestamp", "@timestamp")

	batchRoot := raw
	if v, ok := getPath(raw, "batches"); ok {
		if m, ok := v.(map[string]interface{}); ok {
			batchRoot = m
		}
	}

	b := &event.Batches
	b.Observables = records(batchRoot, "observables")
	b.DomainObjects = records(batchRoot, "domain_objects", "domainObjects", "sdos")
	b.Vulnerabilities = records(batchRoot, "vulnerabilities", "cves")
	b.SimulationEntities = records(batchRoot, "simulation_entities", "simulationEntities", "openaev_entities")
	b.AIEntities = aiCandidates(batchRoot, "ai_entities", "aiEntities")

	if event.ScanID == "" && event.PageURL == "" {
		logger.Warnf("Scan event without scan_id or page_url (seq=%d)", event.Sequence)
	}
	return event, nil
}

// records decodes one batch record by record. Records that do not fit the
// record shape are skipped so the rest of the scan still gets through.
func records(root map[string]interface{}, paths ...string) []models.DetectionRecord {
	items := batchItems(root, paths...)
	if len(items) == 0 {
		return nil
	}
	out := make([]models.DetectionRecord, 0, len(items))
	for i, item := range items {
		var rec models.DetectionRecord
		if err := remarshal(item, &rec); err != nil {
			skipRecord(paths[0], i, err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

func aiCandidates(root map[string]interface{}, paths ...string) []models.AICandidate {
	items := batchItems(root, paths...)
	if len(items) == 0 {
		return nil
	}
	out := make([]models.AICandidate, 0, len(items))
	for i, item := range items {
		var c models.AICandidate
		if err := remarshal(item, &c); err != nil {
			skipRecord(paths[0], i, err)
			continue
		}
		out = append(out, c)
	}
	return out
}

func batchItems(root map[string]interface{}, paths ...string) []interface{} {
	v, ok := firstPath(root, paths...)
	if !ok || v == nil {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		logger.Warnf("Ignoring %s: expected a list, got %T", paths[0], v)
		metrics.RecordsSkipped.WithLabelValues(paths[0]).Inc()
		return nil
	}
	return items
}

func skipRecord(batch string, index int, err error) {
	logger.Warnf("Skipping %s[%d]: %v", batch, index, err)
	metrics.RecordsSkipped.WithLabelValues(batch).Inc()
}

func remarshal(v interface{}, dst interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, dst)
}

func getTime(root map[string]interface{}, paths ...string) time.Time {
	for _, path := range paths {
		v, ok := getPath(root, path)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
				if t, err := time.Parse(layout, strings.TrimSpace(val)); err == nil {
					return t.UTC()
				}
			}
		case float64:
			return time.UnixMilli(int64(val)).UTC()
		}
	}
	return time.Time{}
}

func getString(root map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			switch val := v.(type) {
			case string:
				if val != "" {
					return val
				}
			case float64:
				if val == float64(int64(val)) {
					return fmt.Sprintf("%d", int64(val))
				}
				return fmt.Sprintf("%f", val)
			}
		}
	}
	return ""
}

func getInt64(root map[string]interface{}, paths ...string) int64 {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			switch val := v.(type) {
			case float64:
				return int64(val)
			case string:
				if val == "" {
					continue
				}
				var parsed int64
				if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
					return parsed
				}
			}
		}
	}
	return 0
}

func firstPath(root map[string]interface{}, paths ...string) (interface{}, bool) {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			return v, true
		}
	}
	return nil, false
}

func getPath(root map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = root
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}
