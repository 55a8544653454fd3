package platform

import (
	"strings"
	"sync"

	"intelscan/pkg/models"
)

// Registry is the single source of truth for configured platforms. Callers
// take a Snapshot at the start of each handler and pass it down explicitly.
type Registry struct {
	mu        sync.RWMutex
	platforms []models.Platform
}

// NewRegistry creates a registry holding a copy of platforms.
func NewRegistry(platforms []models.Platform) *Registry {
	r := &Registry{}
	r.Replace(platforms)
	return r
}

// Replace swaps the platform list, e.g. after a settings change.
func (r *Registry) Replace(platforms []models.Platform) {
	cp := make([]models.Platform, 0, len(platforms))
	for _, p := range platforms {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			continue
		}
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		cp = append(cp, p)
	}
	r.mu.Lock()
	r.platforms = cp
	r.mu.Unlock()
}

// Snapshot returns the platforms as of the call.
func (r *Registry) Snapshot() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Platform(nil), r.platforms...)
}

// Get returns the platform with the exact id.
func (r *Registry) Get(id string) (models.Platform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.platforms {
		if p.ID == id {
			return p, true
		}
	}
	return models.Platform{}, false
}
