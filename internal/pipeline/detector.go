package pipeline

import (
	"strings"

	"intelscan/internal/aggregate"
	"intelscan/internal/extract"
	"intelscan/internal/match"
	"intelscan/internal/metrics"
	"intelscan/pkg/models"
)

// Detector confirms detection records against the page text and folds them
// into result entities.
type Detector struct {
	scanner        *match.Scanner
	extractGrammar bool
}

// NewDetector creates a detector. When extractGrammar is set, identifiers
// found by the fixed grammars are reported as not-found observables.
func NewDetector(scanner *match.Scanner, extractGrammar bool) *Detector {
	if scanner == nil {
		scanner = match.NewScanner()
	}
	return &Detector{scanner: scanner, extractGrammar: extractGrammar}
}

// Process runs detection and aggregation for one event. existing seeds the
// aggregation and is not modified.
func (d *Detector) Process(ev *models.ScanEvent, existing []models.ScanResultEntity) *models.ScanResult {
	batches := d.Detect(ev)
	entities := aggregate.Aggregate(batches, existing)

	for _, e := range entities {
		if e.Found {
			metrics.EntitiesAggregated.WithLabelValues("true").Inc()
		} else {
			metrics.EntitiesAggregated.WithLabelValues("false").Inc()
		}
	}

	return &models.ScanResult{
		ScanID:    ev.ScanID,
		PageURL:   ev.PageURL,
		Sequence:  ev.Sequence,
		Timestamp: ev.Timestamp,
		Entities:  entities,
	}
}

// Detect locates every record lacking a matched string in the event text.
// Records whose literal does not occur are dropped. Without page text the
// batches are returned unchanged.
func (d *Detector) Detect(ev *models.ScanEvent) models.ScanBatches {
	out := ev.Batches
	if ev.Text == "" {
		return out
	}

	var stats match.ScanStats
	out.Observables = d.locate(ev.Text, ev.Batches.Observables, &stats)
	out.DomainObjects = d.locate(ev.Text, ev.Batches.DomainObjects, &stats)
	out.Vulnerabilities = d.locate(ev.Text, ev.Batches.Vulnerabilities, &stats)
	out.SimulationEntities = d.locate(ev.Text, ev.Batches.SimulationEntities, &stats)

	if d.extractGrammar {
		out.Observables = append(out.Observables, grammarRecords(ev.Text, out)...)
	}

	metrics.MatchesAccepted.Add(float64(stats.Accepted))
	metrics.MatchesRejected.WithLabelValues("boundary").Add(float64(stats.RejectedBoundary))
	metrics.MatchesRejected.WithLabelValues("overlap").Add(float64(stats.RejectedOverlap))
	return out
}

// locate runs one scan pass per platform over the records of one batch.
func (d *Detector) locate(text string, records []models.DetectionRecord, stats *match.ScanStats) []models.DetectionRecord {
	if len(records) == 0 {
		return nil
	}

	byPlatform := make(map[string][]int)
	platformOrder := make([]string, 0, 2)
	for i, rec := range records {
		if rec.MatchedString != "" || len(rec.MatchedStrings) > 0 {
			continue
		}
		if _, ok := byPlatform[rec.PlatformID]; !ok {
			platformOrder = append(platformOrder, rec.PlatformID)
		}
		byPlatform[rec.PlatformID] = append(byPlatform[rec.PlatformID], i)
	}

	located := make(map[int]string, len(records))
	for _, platformID := range platformOrder {
		idx := byPlatform[platformID]
		cands := make([]models.Candidate, 0, len(idx))
		owners := make(map[string][]int, len(idx))
		for _, i := range idx {
			c := candidateOf(records[i])
			key := candidateKey(c)
			if _, ok := owners[key]; !ok {
				cands = append(cands, c)
			}
			owners[key] = append(owners[key], i)
		}

		detections, s := d.scanner.Scan(text, cands)
		stats.Add(s)
		for _, det := range detections {
			for _, i := range owners[candidateKey(det.Candidate)] {
				if _, ok := located[i]; !ok {
					located[i] = det.Text
				}
			}
		}
	}

	out := make([]models.DetectionRecord, 0, len(records))
	for i, rec := range records {
		if rec.MatchedString != "" || len(rec.MatchedStrings) > 0 {
			out = append(out, rec)
			continue
		}
		s, ok := located[i]
		if !ok {
			continue
		}
		rec.MatchedString = s
		out = append(out, rec)
	}
	return out
}

func candidateOf(rec models.DetectionRecord) models.Candidate {
	name := rec.Name
	if name == "" {
		name = rec.Value
	}
	c := match.NewCandidate(name, rec.Value)
	c.Type = rec.Type
	c.PlatformID = rec.PlatformID
	c.PlatformType = rec.PlatformType
	c.EntityID = rec.EntityID
	c.Found = rec.Found
	return c
}

func candidateKey(c models.Candidate) string {
	return strings.ToLower(c.Type + "|" + c.Name + "|" + c.Value + "|" + c.EntityID)
}

// grammarRecords returns grammar hits not already covered by a record.
func grammarRecords(text string, batches models.ScanBatches) []models.DetectionRecord {
	seen := make(map[string]struct{})
	for _, list := range [][]models.DetectionRecord{batches.Observables, batches.DomainObjects, batches.Vulnerabilities, batches.SimulationEntities} {
		for _, rec := range list {
			seen[aggregate.GroupKey(rec.Name)] = struct{}{}
			seen[aggregate.GroupKey(rec.Value)] = struct{}{}
		}
	}

	var out []models.DetectionRecord
	for _, c := range extract.Extract(text) {
		if _, ok := seen[aggregate.GroupKey(c.Value)]; ok {
			continue
		}
		out = append(out, models.DetectionRecord{
			Type:          c.Type,
			Name:          c.Name,
			Value:         c.Value,
			MatchedString: c.Value,
		})
	}
	return out
}
