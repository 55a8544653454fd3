package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelscan/pkg/models"
)

func knownPlatforms() []models.Platform {
	return []models.Platform{
		{ID: "oaev-a", Name: "Range A", Type: models.FamilyOpenAEV},
		{ID: "octi-main", Name: "OpenCTI Main", Type: models.FamilyOpenCTI},
		{ID: "oaev-b", Name: "Range B", Type: models.FamilyOpenAEV},
	}
}

func TestResolveOrdersKnowledgeBaseFirstAndKeepsAuxiliaryOrder(t *testing.T) {
	entity := models.ScanResultEntity{Name: "Phishing", Type: "Attack-Pattern"}
	matches := []models.PlatformMatch{
		{PlatformID: "oaev-b", PlatformType: models.FamilyOpenAEV, EntityID: "b-1", Type: "oaev-AttackPattern"},
		{PlatformID: "oaev-a", PlatformType: models.FamilyOpenAEV, EntityID: "a-1", Type: "AttackPattern"},
		{PlatformID: "octi-main", PlatformType: models.FamilyOpenCTI, EntityID: "attack-pattern--1", Type: "Attack-Pattern"},
	}

	got := Resolve(Payload{Entity: entity, PlatformMatches: matches}, knownPlatforms())
	require.Len(t, got, 3)
	assert.Equal(t, "octi-main", got[0].PlatformID)
	assert.Equal(t, "oaev-b", got[1].PlatformID)
	assert.Equal(t, "oaev-a", got[2].PlatformID)

	assert.Equal(t, "OpenCTI Main", got[0].PlatformName)
	assert.Equal(t, "Attack-Pattern", got[0].Entity.Type)
	assert.Equal(t, "oaev-AttackPattern", got[1].Entity.Type)
	assert.Equal(t, "AttackPattern", got[1].Entity.CleanType)
	assert.Equal(t, "oaev-AttackPattern", got[2].Entity.Type)
	assert.Equal(t, "Phishing", got[2].Entity.Name)
}

func TestResolveUsesEntityMatchesWhenPayloadHasNone(t *testing.T) {
	entity := models.ScanResultEntity{
		Name: "Emotet",
		PlatformMatches: []models.PlatformMatch{
			{PlatformID: "octi-main", PlatformType: models.FamilyOpenCTI, EntityID: "malware--1", Type: "Malware",
				EntityData: map[string]interface{}{"name": "Emotet (Geodo)"}},
		},
	}

	got := Resolve(Payload{Entity: entity}, knownPlatforms())
	require.Len(t, got, 1)
	assert.Equal(t, "Emotet (Geodo)", got[0].Entity.Name)
	assert.Equal(t, "malware--1", got[0].Entity.ID)
}

func TestResolveFallsBackToSameFamily(t *testing.T) {
	matches := []models.PlatformMatch{
		{PlatformID: "octi-old", PlatformType: models.FamilyOpenCTI, EntityID: "m-1", Type: "Malware"},
	}

	got := Resolve(Payload{PlatformMatches: matches}, knownPlatforms())
	require.Len(t, got, 1)
	assert.Equal(t, "octi-main", got[0].PlatformID)
	assert.Equal(t, "OpenCTI Main", got[0].PlatformName)
}

func TestResolveKeepsMatchWithoutKnownPlatform(t *testing.T) {
	matches := []models.PlatformMatch{
		{PlatformID: "misp-1", PlatformType: "misp", EntityID: "e-1", Type: "Event"},
	}

	got := Resolve(Payload{PlatformMatches: matches}, knownPlatforms())
	require.Len(t, got, 1)
	assert.Equal(t, "misp-1", got[0].PlatformID)
	assert.Empty(t, got[0].PlatformName)
	assert.Equal(t, "Event", got[0].Entity.Type)
}

func TestSortPlatformResultsIsStable(t *testing.T) {
	results := []models.MultiPlatformResult{
		{PlatformID: "x1", PlatformType: models.FamilyOpenAEV},
		{PlatformID: "k1", PlatformType: models.FamilyOpenCTI},
		{PlatformID: "x2", PlatformType: "other"},
		{PlatformID: "k2", PlatformType: models.FamilyOpenCTI},
		{PlatformID: "x3", PlatformType: models.FamilyOpenAEV},
	}

	got := SortPlatformResults(results)
	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.PlatformID)
	}
	assert.Equal(t, []string{"k1", "k2", "x1", "x2", "x3"}, ids)
}

func TestLookupPlatform(t *testing.T) {
	p, ok := LookupPlatform("oaev-b", models.FamilyOpenAEV, knownPlatforms())
	require.True(t, ok)
	assert.Equal(t, "Range B", p.Name)

	p, ok = LookupPlatform("gone", models.FamilyOpenAEV, knownPlatforms())
	require.True(t, ok)
	assert.Equal(t, "oaev-a", p.ID)

	_, ok = LookupPlatform("gone", "", knownPlatforms())
	assert.False(t, ok)
}
