package match

import (
	"strconv"
	"strings"

	"intelscan/pkg/models"
)

// RangeKey returns the canonical identity of a range.
func RangeKey(start, end int) string {
	return strconv.Itoa(start) + "-" + strconv.Itoa(end)
}

// ParseRangeKey is the inverse of RangeKey.
func ParseRangeKey(key string) (models.CharRange, bool) {
	left, right, ok := strings.Cut(key, "-")
	if !ok {
		return models.CharRange{}, false
	}
	start, err := strconv.Atoi(left)
	if err != nil {
		return models.CharRange{}, false
	}
	end, err := strconv.Atoi(right)
	if err != nil || end < start {
		return models.CharRange{}, false
	}
	return models.CharRange{Start: start, End: end}, true
}

// HasOverlappingRange reports whether [start, end) shares at least one offset
// with any accepted range key. Touching ranges do not overlap. Malformed keys
// are ignored.
func HasOverlappingRange(start, end int, accepted []string) bool {
	for _, key := range accepted {
		r, ok := ParseRangeKey(key)
		if !ok {
			continue
		}
		if overlaps(start, end, r.Start, r.End) {
			return true
		}
	}
	return false
}

func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// RangeSet holds the ranges accepted during one scan pass.
type RangeSet struct {
	byKey map[string]models.CharRange
}

// NewRangeSet returns an empty set.
func NewRangeSet() *RangeSet {
	return &RangeSet{byKey: make(map[string]models.CharRange)}
}

// Add records [start, end) as accepted.
func (s *RangeSet) Add(start, end int) {
	s.byKey[RangeKey(start, end)] = models.CharRange{Start: start, End: end}
}

// Contains reports whether exactly [start, end) was accepted.
func (s *RangeSet) Contains(start, end int) bool {
	_, ok := s.byKey[RangeKey(start, end)]
	return ok
}

// Overlaps reports whether [start, end) overlaps any accepted range.
func (s *RangeSet) Overlaps(start, end int) bool {
	for _, r := range s.byKey {
		if overlaps(start, end, r.Start, r.End) {
			return true
		}
	}
	return false
}
