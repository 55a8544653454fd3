package match

import (
	"net/netip"
	"regexp"
	"strings"

	"intelscan/pkg/models"
)

var (
	mitreIDRegex       = regexp.MustCompile(`(?i)^(?:T\d{4}(?:\.\d{3})?|TA\d{4}|TS\d{4})$`)
	parentMitreIDRegex = regexp.MustCompile(`(?i)^(?:T\d{4}|TA\d{4}|TS\d{4})$`)
	ipv4ShapeRegex     = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	macColonRegex      = regexp.MustCompile(`^[0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5}$`)
	macHyphenRegex     = regexp.MustCompile(`^[0-9A-Fa-f]{2}(?:-[0-9A-Fa-f]{2}){5}$`)
)

// IsMitreID reports whether s is an ATT&CK technique, sub-technique, tactic
// or software/group identifier.
func IsMitreID(s string) bool {
	return mitreIDRegex.MatchString(s)
}

// IsParentMitreID is IsMitreID without the sub-technique form.
func IsParentMitreID(s string) bool {
	return parentMitreIDRegex.MatchString(s)
}

// IsIPAddress reports whether s is a strict dotted-quad IPv4 address.
func IsIPAddress(s string) bool {
	if !ipv4ShapeRegex.MatchString(s) {
		return false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.Is4()
}

// IsMACAddress reports whether s is six hex octets joined by a single kind of
// separator, colon or hyphen.
func IsMACAddress(s string) bool {
	return macColonRegex.MatchString(s) || macHyphenRegex.MatchString(s)
}

// Classify returns the identifier family of name.
func Classify(name string) models.Kind {
	name = strings.TrimSpace(name)
	switch {
	case IsIPAddress(name):
		return models.KindIP
	case IsMACAddress(name):
		return models.KindMAC
	case IsMitreID(name):
		return models.KindMitreID
	default:
		return models.KindGeneric
	}
}

// NeedsManualBoundaryCheck reports whether matches of name must be confirmed
// with HasValidBoundaries.
func NeedsManualBoundaryCheck(name string) bool {
	return Classify(name).NeedsBoundaryCheck()
}

// NewCandidate builds a candidate with its family classified from name.
func NewCandidate(name, value string) models.Candidate {
	return models.Candidate{Name: name, Value: value, Kind: Classify(name)}
}
