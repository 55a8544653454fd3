// Package aggregate folds per-platform detection records into one
// deduplicated, provenance-preserving entity per canonical display name.
package aggregate

import (
	"strings"

	"intelscan/internal/logger"
	"intelscan/internal/platform"
	"intelscan/pkg/models"
)

// GroupKey returns the merge key for a display name: whitespace collapsed,
// trimmed and lowercased.
func GroupKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// SyntheticID derives a stable identifier for records that arrive without one.
func SyntheticID(typ, name string) string {
	key := strings.ReplaceAll(GroupKey(name), " ", "-")
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		typ = "entity"
	}
	return typ + "-" + key
}

type batchKind int

const (
	batchObservable batchKind = iota
	batchDomainObject
	batchVulnerability
	batchSimulation
)

// Aggregate merges the batches of one scan into a flat entity list. Entities
// in existing seed the grouping and are copied, never modified. Output order
// is the order in which each group key was first seen; AI candidates follow
// as standalone entries.
func Aggregate(batches models.ScanBatches, existing []models.ScanResultEntity) []models.ScanResultEntity {
	groups := make(map[string]*models.ScanResultEntity, len(existing)+len(batches.Observables)+len(batches.DomainObjects))
	order := make([]string, 0, len(existing))

	for _, e := range existing {
		key := GroupKey(e.Name)
		if key == "" {
			key = GroupKey(e.ID)
		}
		if key == "" {
			continue
		}
		if g, ok := groups[key]; ok {
			mergeEntity(g, e)
			continue
		}
		cp := copyEntity(e)
		groups[key] = &cp
		order = append(order, key)
	}

	fold := func(kind batchKind, records []models.DetectionRecord) {
		for i := range records {
			rec := normalize(kind, records[i])
			key := GroupKey(rec.Name)
			if key == "" {
				logger.Warnf("Dropping detection record without name or value (type=%s, platform=%s)", rec.Type, rec.PlatformID)
				continue
			}
			if g, ok := groups[key]; ok {
				mergeRecord(g, rec)
				continue
			}
			groups[key] = newEntity(rec)
			order = append(order, key)
		}
	}
	fold(batchObservable, batches.Observables)
	fold(batchDomainObject, batches.DomainObjects)
	fold(batchVulnerability, batches.Vulnerabilities)
	fold(batchSimulation, batches.SimulationEntities)

	out := make([]models.ScanResultEntity, 0, len(order)+len(batches.AIEntities))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	for _, ai := range batches.AIEntities {
		if e, ok := aiEntity(ai); ok {
			out = append(out, e)
		}
	}
	return out
}

func normalize(kind batchKind, rec models.DetectionRecord) models.DetectionRecord {
	switch kind {
	case batchObservable:
		if rec.Value != "" {
			rec.Name = rec.Value
		}
	case batchVulnerability:
		if rec.Type == "" {
			rec.Type = "Vulnerability"
		}
	case batchSimulation:
		if rec.PlatformType == "" {
			rec.PlatformType = models.FamilyOpenAEV
		}
		rec.Type = platform.DisplayType(rec.PlatformType, rec.Type)
	}
	if rec.Name == "" {
		rec.Name = rec.Value
	}
	if rec.Found && rec.PlatformType == "" {
		rec.PlatformType = models.FamilyOpenCTI
	}
	if rec.ID == "" {
		rec.ID = rec.EntityID
	}
	if rec.ID == "" {
		rec.ID = SyntheticID(rec.Type, rec.Name)
	}
	return rec
}

func platformMatchOf(rec models.DetectionRecord) (models.PlatformMatch, bool) {
	if !rec.Found {
		return models.PlatformMatch{}, false
	}
	entityID := rec.EntityID
	if entityID == "" {
		entityID = rec.ID
	}
	return models.PlatformMatch{
		PlatformID:   rec.PlatformID,
		PlatformType: rec.PlatformType,
		EntityID:     entityID,
		EntityData:   rec.EntityData,
		Type:         rec.Type,
	}, true
}

func newEntity(rec models.DetectionRecord) *models.ScanResultEntity {
	e := &models.ScanResultEntity{
		ID:              rec.ID,
		Type:            rec.Type,
		Name:            rec.Name,
		Value:           rec.Value,
		PlatformMatches: []models.PlatformMatch{},
		MatchedStrings:  []string{},
	}
	mergeRecord(e, rec)
	return e
}

func mergeRecord(e *models.ScanResultEntity, rec models.DetectionRecord) {
	for _, pm := range rec.PlatformMatches {
		addPlatformMatch(e, pm)
	}
	if pm, ok := platformMatchOf(rec); ok {
		addPlatformMatch(e, pm)
	}
	if rec.Found {
		e.Found = true
	}
	addMatchedString(e, rec.MatchedString)
	for _, s := range rec.MatchedStrings {
		addMatchedString(e, s)
	}
}

func mergeEntity(dst *models.ScanResultEntity, src models.ScanResultEntity) {
	for _, pm := range src.PlatformMatches {
		addPlatformMatch(dst, pm)
	}
	if src.Found {
		dst.Found = true
	}
	for _, s := range src.MatchedStrings {
		addMatchedString(dst, s)
	}
}

func addPlatformMatch(e *models.ScanResultEntity, pm models.PlatformMatch) {
	for _, existing := range e.PlatformMatches {
		if existing.SameIdentity(pm) {
			return
		}
	}
	e.PlatformMatches = append(e.PlatformMatches, pm)
	e.Found = true
}

func addMatchedString(e *models.ScanResultEntity, s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	for _, existing := range e.MatchedStrings {
		if strings.EqualFold(existing, s) {
			return
		}
	}
	e.MatchedStrings = append(e.MatchedStrings, s)
}

func copyEntity(e models.ScanResultEntity) models.ScanResultEntity {
	cp := e
	cp.PlatformMatches = append([]models.PlatformMatch{}, e.PlatformMatches...)
	cp.MatchedStrings = append([]string{}, e.MatchedStrings...)
	return cp
}

func aiEntity(ai models.AICandidate) (models.ScanResultEntity, bool) {
	name := ai.Name
	if name == "" {
		name = ai.Value
	}
	if GroupKey(name) == "" {
		return models.ScanResultEntity{}, false
	}
	value := ai.Value
	if value == "" {
		value = name
	}
	return models.ScanResultEntity{
		ID:              "ai-" + SyntheticID(ai.Type, name),
		Type:            ai.Type,
		Name:            name,
		Value:           value,
		PlatformMatches: []models.PlatformMatch{},
		MatchedStrings:  []string{value},
		DiscoveredByAI:  true,
		AIReason:        ai.Reason,
		AIConfidence:    ai.Confidence,
	}, true
}
