package platform

import (
	"strings"

	"intelscan/pkg/models"
)

// SimulationPrefix marks entity types that belong to the OpenAEV family.
const SimulationPrefix = "oaev-"

// IsKnowledgeBase reports whether family is the source-of-record family.
func IsKnowledgeBase(family string) bool {
	return strings.EqualFold(strings.TrimSpace(family), models.FamilyOpenCTI)
}

// TypePrefix returns the display prefix used for entity types of family.
func TypePrefix(family string) string {
	if strings.EqualFold(strings.TrimSpace(family), models.FamilyOpenAEV) {
		return SimulationPrefix
	}
	return ""
}

// DisplayType tags typ with the family prefix, leaving already-prefixed
// types alone.
func DisplayType(family, typ string) string {
	prefix := TypePrefix(family)
	if prefix == "" || strings.HasPrefix(typ, prefix) {
		return typ
	}
	return prefix + typ
}

// CleanType strips any known family prefix from typ.
func CleanType(typ string) string {
	return strings.TrimPrefix(typ, SimulationPrefix)
}
