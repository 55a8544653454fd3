// Package candidates loads the named identifiers the scanner looks for.
package candidates

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"intelscan/internal/match"
	"intelscan/pkg/models"
)

// Catalog is a YAML list of candidates.
type Catalog struct {
	Version    int            `yaml:"version"`
	Defaults   CatalogDefault `yaml:"defaults"`
	Candidates []CatalogEntry `yaml:"candidates"`
}

// CatalogDefault holds fallbacks for entries.
type CatalogDefault struct {
	Type string `yaml:"type"`
}

// CatalogEntry is one candidate as written in the catalog file. Kind is
// optional; when empty the family is classified from the name.
type CatalogEntry struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
	Kind  string `yaml:"kind"`
	Type  string `yaml:"type"`
}

// LoadCatalog reads candidates from a YAML file.
func LoadCatalog(path string) ([]models.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidate catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog YAML. Entries with neither name nor value are
// skipped.
func ParseCatalog(data []byte) ([]models.Candidate, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse candidate catalog: %w", err)
	}

	out := make([]models.Candidate, 0, len(c.Candidates))
	for _, e := range c.Candidates {
		name := strings.TrimSpace(e.Name)
		value := strings.TrimSpace(e.Value)
		if name == "" {
			name = value
		}
		if name == "" {
			continue
		}
		typ := strings.TrimSpace(e.Type)
		if typ == "" {
			typ = c.Defaults.Type
		}

		cand := match.NewCandidate(name, value)
		if kind := strings.ToLower(strings.TrimSpace(e.Kind)); kind != "" {
			cand.Kind = models.ParseKind(kind)
		}
		cand.Type = typ
		out = append(out, cand)
	}
	return out, nil
}
