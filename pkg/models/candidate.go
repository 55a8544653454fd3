package models

// Kind is the identifier family a candidate name belongs to.
type Kind int

const (
	KindGeneric Kind = iota
	KindIP
	KindMAC
	KindMitreID
)

// String returns the lowercase family name.
func (k Kind) String() string {
	switch k {
	case KindIP:
		return "ip"
	case KindMAC:
		return "mac"
	case KindMitreID:
		return "mitre-id"
	default:
		return "generic"
	}
}

// NeedsBoundaryCheck reports whether matches of this family must be
// confirmed by the manual boundary check. IP, MAC and MITRE grammars are
// anchored precisely enough by their patterns.
func (k Kind) NeedsBoundaryCheck() bool {
	return k == KindGeneric
}

// ParseKind maps a family name back to a Kind. Unknown names are generic.
func ParseKind(s string) Kind {
	switch s {
	case "ip", "ipv4":
		return KindIP
	case "mac":
		return KindMAC
	case "mitre-id", "mitre":
		return KindMitreID
	default:
		return KindGeneric
	}
}

// Candidate is a named identifier looked for in page text. Platform fields are
// set when the candidate was produced by a platform lookup.
type Candidate struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value,omitempty" yaml:"value"`
	Kind  Kind   `json:"-" yaml:"-"`
	Type  string `json:"type,omitempty" yaml:"type"`

	PlatformID   string                 `json:"platform_id,omitempty" yaml:"-"`
	PlatformType string                 `json:"platform_type,omitempty" yaml:"-"`
	EntityID     string                 `json:"entity_id,omitempty" yaml:"-"`
	Found        bool                   `json:"found,omitempty" yaml:"-"`
	EntityData   map[string]interface{} `json:"entity_data,omitempty" yaml:"-"`
}

// Literals returns the distinct non-empty strings searched for this candidate.
func (c Candidate) Literals() []string {
	out := make([]string, 0, 2)
	if c.Name != "" {
		out = append(out, c.Name)
	}
	if c.Value != "" && c.Value != c.Name {
		out = append(out, c.Value)
	}
	return out
}

// CharRange is a half-open byte range [Start, End) into scanned text.
type CharRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes in the range.
func (r CharRange) Len() int {
	return r.End - r.Start
}

// Detection is one accepted occurrence of a candidate literal.
type Detection struct {
	Candidate Candidate `json:"candidate"`
	Range     CharRange `json:"range"`
	Text      string    `json:"text"`
}
