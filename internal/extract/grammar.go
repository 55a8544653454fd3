// Package extract finds fixed-grammar identifiers in page text: MITRE ATT&CK
// IDs, IPv4 and MAC addresses, file hashes, URLs, email addresses and CVEs.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"intelscan/internal/match"
	"intelscan/pkg/models"
)

// Observable types produced by Extract.
const (
	TypeIPv4          = "IPv4-Addr"
	TypeMAC           = "Mac-Addr"
	TypeMD5           = "StixFile:MD5"
	TypeSHA1          = "StixFile:SHA-1"
	TypeSHA256        = "StixFile:SHA-256"
	TypeURL           = "Url"
	TypeEmail         = "Email-Addr"
	TypeCVE           = "Vulnerability"
	TypeAttackPattern = "Attack-Pattern"
	TypeTactic        = "x-mitre-tactic"
	TypeMitreObject   = "Mitre-Object"
)

type grammar struct {
	typ   string
	re    *regexp.Regexp
	valid func(string) bool
	norm  func(string) string
}

var grammars = []grammar{
	{typ: TypeURL, re: regexp.MustCompile(`(?i)\b(?:hxxps?|https?)://[^\s<>"'\x60]+`)},
	{typ: TypeEmail, re: regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)},
	{typ: TypeCVE, re: regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`), norm: strings.ToUpper},
	{typ: TypeSHA256, re: regexp.MustCompile(`\b[A-Fa-f0-9]{64}\b`), norm: strings.ToLower},
	{typ: TypeSHA1, re: regexp.MustCompile(`\b[A-Fa-f0-9]{40}\b`), norm: strings.ToLower},
	{typ: TypeMD5, re: regexp.MustCompile(`\b[A-Fa-f0-9]{32}\b`), norm: strings.ToLower},
	{typ: TypeMAC, re: regexp.MustCompile(`\b[0-9A-Fa-f]{2}(?:[:-][0-9A-Fa-f]{2}){5}\b`), valid: match.IsMACAddress},
	{typ: TypeIPv4, re: regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`), valid: match.IsIPAddress},
	{typ: TypeAttackPattern, re: regexp.MustCompile(`(?i)\bT\d{4}(?:\.\d{3})?\b`), norm: strings.ToUpper},
	{typ: TypeTactic, re: regexp.MustCompile(`(?i)\bTA\d{4}\b`), norm: strings.ToUpper},
	{typ: TypeMitreObject, re: regexp.MustCompile(`(?i)\bTS\d{4}\b`), norm: strings.ToUpper},
}

// Extract returns one candidate per distinct identifier found in text, in
// order of first occurrence. Identifiers that sit inside a longer token
// (for example an IPv4 inside a URL) are reported only as the longer token.
func Extract(text string) []models.Candidate {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	type hit struct {
		r   models.CharRange
		typ string
		val string
	}
	accepted := match.NewRangeSet()
	var hits []hit

	for _, g := range grammars {
		for _, loc := range g.re.FindAllStringIndex(text, -1) {
			raw := text[loc[0]:loc[1]]
			if g.typ == TypeURL {
				raw = trimURL(raw)
			}
			val := raw
			if g.norm != nil {
				val = g.norm(raw)
			}
			if g.valid != nil && !g.valid(val) {
				continue
			}
			end := loc[0] + len(raw)
			if accepted.Overlaps(loc[0], end) {
				continue
			}
			accepted.Add(loc[0], end)
			hits = append(hits, hit{r: models.CharRange{Start: loc[0], End: end}, typ: g.typ, val: val})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].r.Start < hits[j].r.Start
	})

	seen := make(map[string]struct{}, len(hits))
	out := make([]models.Candidate, 0, len(hits))
	for _, h := range hits {
		key := h.typ + "|" + strings.ToLower(h.val)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		c := match.NewCandidate(h.val, h.val)
		c.Type = h.typ
		out = append(out, c)
	}
	return out
}

func trimURL(s string) string {
	return strings.TrimRight(s, ".,;:!?)]}'\"")
}
