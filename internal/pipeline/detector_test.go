package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelscan/pkg/models"
)

func TestDetectorLocatesAndDropsRecords(t *testing.T) {
	ev := &models.ScanEvent{
		ScanID: "scan-1",
		Text:   "APT29 pivoted from 192.168.1.10 using cmd.exe and T1059.001; admin-APT29 is unrelated.",
		Batches: models.ScanBatches{
			Observables: []models.DetectionRecord{
				{Type: "IPv4-Addr", Value: "192.168.1.10", Found: true, PlatformID: "octi", PlatformType: models.FamilyOpenCTI, EntityID: "ipv4--1"},
				{Type: "IPv4-Addr", Value: "192.168.1.1", Found: true, PlatformID: "octi", PlatformType: models.FamilyOpenCTI, EntityID: "ipv4--2"},
			},
			DomainObjects: []models.DetectionRecord{
				{Type: "Intrusion-Set", Name: "apt29", Found: true, PlatformID: "octi", PlatformType: models.FamilyOpenCTI, EntityID: "is--1"},
				{Type: "Attack-Pattern", Name: "T1059", Found: true, PlatformID: "octi", PlatformType: models.FamilyOpenCTI, EntityID: "ap--1"},
				{Type: "Attack-Pattern", Name: "T1059.001", Found: true, PlatformID: "octi", PlatformType: models.FamilyOpenCTI, EntityID: "ap--2"},
				{Type: "Malware", Name: "Emotet", MatchedString: "emotet"},
			},
		},
	}

	got := NewDetector(nil, false).Detect(ev)

	require.Len(t, got.Observables, 1)
	assert.Equal(t, "192.168.1.10", got.Observables[0].MatchedString)

	require.Len(t, got.DomainObjects, 3)
	assert.Equal(t, "APT29", got.DomainObjects[0].MatchedString, "literal page text is kept")
	assert.Equal(t, "T1059.001", got.DomainObjects[1].MatchedString)
	assert.Equal(t, "Emotet", got.DomainObjects[2].Name, "pre-located records are kept as is")
}

func TestDetectorRunsOnePassPerPlatform(t *testing.T) {
	ev := &models.ScanEvent{
		Text: "Phishing campaign",
		Batches: models.ScanBatches{
			SimulationEntities: []models.DetectionRecord{
				{Type: "AttackPattern", Name: "Phishing", Found: true, PlatformID: "oaev-a", EntityID: "a-1"},
				{Type: "AttackPattern", Name: "Phishing", Found: true, PlatformID: "oaev-b", EntityID: "b-1"},
			},
		},
	}

	got := NewDetector(nil, false).Detect(ev)
	require.Len(t, got.SimulationEntities, 2)
	for _, rec := range got.SimulationEntities {
		assert.Equal(t, "Phishing", rec.MatchedString)
	}
}

func TestDetectorWithoutTextKeepsBatches(t *testing.T) {
	ev := &models.ScanEvent{
		Batches: models.ScanBatches{
			DomainObjects: []models.DetectionRecord{{Type: "Malware", Name: "Emotet"}},
		},
	}
	got := NewDetector(nil, true).Detect(ev)
	assert.Equal(t, ev.Batches, got)
}

func TestDetectorAddsGrammarObservables(t *testing.T) {
	ev := &models.ScanEvent{
		Text: "Beacon to 10.1.2.3 exploiting CVE-2024-3400 via T1190",
		Batches: models.ScanBatches{
			Vulnerabilities: []models.DetectionRecord{
				{Name: "CVE-2024-3400", Found: true, PlatformID: "octi", PlatformType: models.FamilyOpenCTI, EntityID: "vuln--1"},
			},
		},
	}

	got := NewDetector(nil, true).Detect(ev)
	require.Len(t, got.Vulnerabilities, 1)

	values := make([]string, 0, len(got.Observables))
	for _, rec := range got.Observables {
		assert.False(t, rec.Found)
		values = append(values, rec.Value)
	}
	assert.Equal(t, []string{"10.1.2.3", "T1190"}, values)
}

func TestDetectorProcessAggregates(t *testing.T) {
	ev := &models.ScanEvent{
		ScanID:   "scan-9",
		PageURL:  "https://example.com",
		Sequence: 3,
		Text:     "Emotet and emotet again",
		Batches: models.ScanBatches{
			DomainObjects: []models.DetectionRecord{
				{Type: "Malware", Name: "Emotet", Found: true, PlatformID: "octi", PlatformType: models.FamilyOpenCTI, EntityID: "malware--1"},
			},
			SimulationEntities: []models.DetectionRecord{
				{Type: "Malware", Name: "EMOTET", Found: true, PlatformID: "oaev", EntityID: "m-1"},
			},
		},
	}

	res := NewDetector(nil, false).Process(ev, nil)
	assert.Equal(t, "scan-9", res.ScanID)
	assert.EqualValues(t, 3, res.Sequence)
	require.Len(t, res.Entities, 1)
	e := res.Entities[0]
	assert.True(t, e.Found)
	assert.Len(t, e.PlatformMatches, 2)
	assert.Equal(t, []string{"Emotet"}, e.MatchedStrings)
}
