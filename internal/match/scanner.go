package match

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"intelscan/internal/logger"
	"intelscan/pkg/models"
)

// ScanStats counts the outcome of one scan pass.
type ScanStats struct {
	Accepted         int
	RejectedBoundary int
	RejectedOverlap  int
}

// Add accumulates other into s.
func (s *ScanStats) Add(other ScanStats) {
	s.Accepted += other.Accepted
	s.RejectedBoundary += other.RejectedBoundary
	s.RejectedOverlap += other.RejectedOverlap
}

// Scanner locates candidate literals in page text. Compiled patterns are
// cached and the scanner is safe for concurrent use; every Scan call owns
// its own accepted-range set.
type Scanner struct {
	mu       sync.RWMutex
	patterns map[string]*Pattern
}

// NewScanner creates a scanner with an empty pattern cache.
func NewScanner() *Scanner {
	return &Scanner{patterns: make(map[string]*Pattern)}
}

type scanEntry struct {
	index   int
	literal string
}

// Scan runs one pass over text. Literals are tried longest first, with
// candidate order breaking ties. A span identical to an accepted one is
// accepted again for a different candidate; a partially overlapping span is
// rejected. Detections are returned in text order.
func (s *Scanner) Scan(text string, candidates []models.Candidate) ([]models.Detection, ScanStats) {
	var stats ScanStats
	if text == "" || len(candidates) == 0 {
		return nil, stats
	}

	entries := make([]scanEntry, 0, len(candidates)*2)
	for i, c := range candidates {
		for _, lit := range c.Literals() {
			lit = strings.TrimSpace(lit)
			if lit == "" {
				continue
			}
			entries = append(entries, scanEntry{index: i, literal: lit})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].literal) > len(entries[j].literal)
	})

	accepted := NewRangeSet()
	claimed := make(map[string]struct{})
	var out []models.Detection

	for _, entry := range entries {
		pattern := s.pattern(entry.literal)
		if pattern == nil {
			continue
		}
		for _, r := range pattern.FindAll(text) {
			if pattern.NeedsBoundaryCheck() && !HasValidBoundaries(text, r.Start, r.End) {
				stats.RejectedBoundary++
				continue
			}
			key := RangeKey(r.Start, r.End)
			claim := key + "|" + strconv.Itoa(entry.index)
			if _, ok := claimed[claim]; ok {
				continue
			}
			if !accepted.Contains(r.Start, r.End) && accepted.Overlaps(r.Start, r.End) {
				stats.RejectedOverlap++
				continue
			}
			accepted.Add(r.Start, r.End)
			claimed[claim] = struct{}{}

			candidate := candidates[entry.index]
			if candidate.Kind == models.KindGeneric {
				candidate.Kind = pattern.Kind()
			}
			out = append(out, models.Detection{
				Candidate: candidate,
				Range:     r,
				Text:      text[r.Start:r.End],
			})
			stats.Accepted++
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Range.Start < out[j].Range.Start
	})
	return out, stats
}

func (s *Scanner) pattern(literal string) *Pattern {
	key := strings.ToLower(literal)
	s.mu.RLock()
	p, ok := s.patterns[key]
	s.mu.RUnlock()
	if ok {
		return p
	}

	p, err := CompilePattern(literal)
	if err != nil {
		logger.Debugf("Skipping candidate literal %q: %v", literal, err)
	}
	s.mu.Lock()
	s.patterns[key] = p
	s.mu.Unlock()
	return p
}
