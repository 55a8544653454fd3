package models

import "time"

// Platform families.
const (
	FamilyOpenCTI = "opencti"
	FamilyOpenAEV = "openaev"
)

// Platform is a configured intelligence platform as known at call time.
type Platform struct {
	ID      string            `json:"id" yaml:"id"`
	Name    string            `json:"name" yaml:"name"`
	Type    string            `json:"type" yaml:"type"`
	URL     string            `json:"url,omitempty" yaml:"url"`
	Timeout time.Duration     `json:"-" yaml:"timeout"`
	Headers map[string]string `json:"-" yaml:"headers"`
}

// PlatformMatch records that an entity was found on one platform.
type PlatformMatch struct {
	PlatformID   string                 `json:"platform_id"`
	PlatformType string                 `json:"platform_type"`
	EntityID     string                 `json:"entity_id,omitempty"`
	EntityData   map[string]interface{} `json:"entity_data,omitempty"`
	Type         string                 `json:"type"`
}

// SameIdentity reports whether two matches denote the same platform entity.
func (m PlatformMatch) SameIdentity(o PlatformMatch) bool {
	return m.PlatformID == o.PlatformID &&
		m.PlatformType == o.PlatformType &&
		m.Type == o.Type &&
		m.EntityID == o.EntityID
}

// EntityData is the per-platform view of an entity.
type EntityData struct {
	ID        string                 `json:"id,omitempty"`
	Type      string                 `json:"type"`
	CleanType string                 `json:"clean_type"`
	Name      string                 `json:"name,omitempty"`
	Value     string                 `json:"value,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// MultiPlatformResult is one platform's view of a logical entity.
type MultiPlatformResult struct {
	PlatformID   string     `json:"platform_id"`
	PlatformName string     `json:"platform_name,omitempty"`
	PlatformType string     `json:"platform_type"`
	Entity       EntityData `json:"entity"`
}
