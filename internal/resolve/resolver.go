// Package resolve builds the per-platform views of one logical entity, orders
// them knowledge base first and guards asynchronous detail fetches against
// navigation.
package resolve

import (
	"sort"
	"strings"

	"intelscan/internal/platform"
	"intelscan/pkg/models"
)

// Payload is a "show entity" request: one entity and the platform matches to
// resolve. When PlatformMatches is empty the entity's own matches are used.
type Payload struct {
	Entity          models.ScanResultEntity `json:"entity"`
	PlatformMatches []models.PlatformMatch  `json:"platform_matches,omitempty"`
}

// LookupPlatform finds the platform with the exact id, falling back to the
// first platform of the same family.
func LookupPlatform(id, family string, known []models.Platform) (models.Platform, bool) {
	for _, p := range known {
		if p.ID == id {
			return p, true
		}
	}
	family = strings.ToLower(strings.TrimSpace(family))
	if family == "" {
		return models.Platform{}, false
	}
	for _, p := range known {
		if strings.EqualFold(p.Type, family) {
			return p, true
		}
	}
	return models.Platform{}, false
}

// Resolve builds one result per platform match, sorted knowledge base first.
// known must be the platform list as of the call.
func Resolve(payload Payload, known []models.Platform) []models.MultiPlatformResult {
	matches := payload.PlatformMatches
	if len(matches) == 0 {
		matches = payload.Entity.PlatformMatches
	}
	out := make([]models.MultiPlatformResult, 0, len(matches))
	for _, pm := range matches {
		out = append(out, resolveMatch(payload.Entity, pm, known))
	}
	return SortPlatformResults(out)
}

func resolveMatch(entity models.ScanResultEntity, pm models.PlatformMatch, known []models.Platform) models.MultiPlatformResult {
	res := models.MultiPlatformResult{
		PlatformID:   pm.PlatformID,
		PlatformType: strings.ToLower(strings.TrimSpace(pm.PlatformType)),
	}
	if p, ok := LookupPlatform(pm.PlatformID, pm.PlatformType, known); ok {
		res.PlatformID = p.ID
		res.PlatformName = p.Name
		if res.PlatformType == "" {
			res.PlatformType = p.Type
		}
	}

	typ := pm.Type
	if typ == "" {
		typ = entity.Type
	}
	clean := platform.CleanType(typ)
	res.Entity = models.EntityData{
		ID:        pm.EntityID,
		Type:      platform.DisplayType(res.PlatformType, clean),
		CleanType: clean,
		Name:      firstNonEmpty(stringField(pm.EntityData, "name"), entity.Name),
		Value:     firstNonEmpty(stringField(pm.EntityData, "value"), entity.Value),
		Data:      copyData(pm.EntityData),
	}
	return res
}

// SortPlatformResults stably moves knowledge-base results ahead of every
// other family, keeping relative order within each group. The slice is
// sorted in place and returned.
func SortPlatformResults(results []models.MultiPlatformResult) []models.MultiPlatformResult {
	sort.SliceStable(results, func(i, j int) bool {
		return platform.IsKnowledgeBase(results[i].PlatformType) && !platform.IsKnowledgeBase(results[j].PlatformType)
	})
	return results
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	if s, ok := data[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func copyData(data map[string]interface{}) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	cp := make(map[string]interface{}, len(data))
	for k, v := range data {
		cp[k] = v
	}
	return cp
}
