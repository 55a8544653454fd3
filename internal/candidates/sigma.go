package candidates

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"

	"intelscan/internal/logger"
	"intelscan/internal/match"
	"intelscan/pkg/models"
)

// TypeAttackPattern is the entity type given to technique candidates.
const TypeAttackPattern = "Attack-Pattern"

var techniqueTagRegex = regexp.MustCompile(`^attack\.t\d{4}(?:\.\d{3})?$`)

// SigmaLoadStats tracks the rule files read while harvesting.
type SigmaLoadStats struct {
	TotalFiles     int
	Loaded         int
	SkippedInvalid int
	Techniques     int
}

// LoadSigmaTechniques walks a Sigma rule file or directory and returns one
// MITRE candidate per distinct ATT&CK technique tag, in first-seen order.
// The titles of the rules tagging a technique are kept in EntityData.
func LoadSigmaTechniques(path string) ([]models.Candidate, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	files, err := ruleFiles(path)
	if err != nil {
		return nil, stats, err
	}
	stats.TotalFiles = len(files)

	byID := make(map[string]int)
	out := make([]models.Candidate, 0, 64)
	for _, ruleFile := range files {
		rule, err := parseSigmaRuleFile(ruleFile)
		if err != nil {
			logger.Debugf("Skipping sigma rule: %v", err)
			stats.SkippedInvalid++
			continue
		}
		stats.Loaded++

		title := strings.TrimSpace(rule.Title)
		for _, id := range techniqueIDs(rule.Tags) {
			idx, ok := byID[id]
			if !ok {
				cand := match.NewCandidate(id, id)
				cand.Type = TypeAttackPattern
				cand.EntityData = map[string]interface{}{"rules": []string{}}
				idx = len(out)
				byID[id] = idx
				out = append(out, cand)
			}
			if title != "" {
				titles := out[idx].EntityData["rules"].([]string)
				out[idx].EntityData["rules"] = append(titles, title)
			}
		}
	}
	stats.Techniques = len(out)
	return out, stats, nil
}

func ruleFiles(path string) ([]string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rule path: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}

	if !info.IsDir() {
		if !isYAMLFile(resolved) {
			return nil, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		return []string{resolved}, nil
	}

	files := make([]string, 0, 256)
	err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() && isYAMLFile(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}
	return files, nil
}

func parseSigmaRuleFile(path string) (sigma.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("read sigma rule %s: %w", path, err)
	}
	rule, err := sigma.ParseRule(raw)
	if err != nil {
		return sigma.Rule{}, fmt.Errorf("parse sigma rule %s: %w", path, err)
	}
	return rule, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

// techniqueIDs returns the upper-cased technique ids tagged on a rule,
// e.g. attack.t1059.001 -> T1059.001.
func techniqueIDs(tags []string) []string {
	var out []string
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !techniqueTagRegex.MatchString(tag) {
			continue
		}
		out = append(out, strings.ToUpper(strings.TrimPrefix(tag, "attack.")))
	}
	return out
}
