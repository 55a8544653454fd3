package resolve

import (
	"context"
	"fmt"
	"sync"

	"intelscan/internal/logger"
	"intelscan/internal/metrics"
	"intelscan/internal/platform"
	"intelscan/pkg/models"
)

// DetailFetcher fetches the full record of an entity from one platform.
type DetailFetcher interface {
	FetchEntityDetail(ctx context.Context, entityID, entityType, platformID string) (*models.EntityData, error)
}

// DetailFetchError reports a failed detail fetch for one platform result. The
// result keeps the fields it had before the fetch.
type DetailFetchError struct {
	PlatformID string
	EntityID   string
	Err        error
}

func (e *DetailFetchError) Error() string {
	return fmt.Sprintf("detail fetch failed (platform=%s, entity=%s): %v", e.PlatformID, e.EntityID, e.Err)
}

func (e *DetailFetchError) Unwrap() error {
	return e.Err
}

// Ticket identifies the navigation state a detail fetch was started from.
type Ticket struct {
	Index      int
	Generation uint64
	Result     models.MultiPlatformResult
}

// Navigator holds the ordered results for the entity on display and the
// current index. Every load or index change bumps a generation counter;
// fetch results carrying an older generation are discarded.
type Navigator struct {
	mu         sync.Mutex
	results    []models.MultiPlatformResult
	index      int
	generation uint64
}

// NewNavigator creates a navigator positioned on the first result.
func NewNavigator(results []models.MultiPlatformResult) *Navigator {
	n := &Navigator{}
	n.Load(results)
	return n
}

// Load replaces the results and resets the index.
func (n *Navigator) Load(results []models.MultiPlatformResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append([]models.MultiPlatformResult(nil), results...)
	n.index = 0
	n.generation++
}

// Len returns the number of results.
func (n *Navigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.results)
}

// Index returns the current index.
func (n *Navigator) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

// Current returns the result at the current index.
func (n *Navigator) Current() (models.MultiPlatformResult, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.index < 0 || n.index >= len(n.results) {
		return models.MultiPlatformResult{}, false
	}
	return n.results[n.index], true
}

// Results returns a copy of all results.
func (n *Navigator) Results() []models.MultiPlatformResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.MultiPlatformResult(nil), n.results...)
}

// Select moves to index i. It returns false when i is out of range.
func (n *Navigator) Select(i int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if i < 0 || i >= len(n.results) {
		return false
	}
	if i != n.index {
		n.index = i
		n.generation++
	}
	return true
}

// Next moves to the following result.
func (n *Navigator) Next() bool {
	return n.Select(n.Index() + 1)
}

// Prev moves to the previous result.
func (n *Navigator) Prev() bool {
	return n.Select(n.Index() - 1)
}

// Begin captures the current position for an asynchronous fetch.
func (n *Navigator) Begin() (Ticket, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.index < 0 || n.index >= len(n.results) {
		return Ticket{}, false
	}
	return Ticket{Index: n.index, Generation: n.generation, Result: n.results[n.index]}, true
}

// Apply merges detail into the result the ticket was issued for, provided the
// navigator has not moved since. It reports whether the detail was applied.
func (n *Navigator) Apply(t Ticket, detail models.EntityData) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if t.Generation != n.generation || t.Index != n.index {
		return false
	}
	n.results[n.index] = mergeDetail(n.results[n.index], detail)
	return true
}

// FetchDetail fetches details for the current result and applies them if the
// navigator is still on the same generation when the fetch completes. A
// stale completion, successful or not, is dropped silently.
func (n *Navigator) FetchDetail(ctx context.Context, fetcher DetailFetcher) (bool, error) {
	t, ok := n.Begin()
	if !ok {
		return false, nil
	}

	res := t.Result
	detail, err := fetcher.FetchEntityDetail(ctx, res.Entity.ID, res.Entity.CleanType, res.PlatformID)
	if err != nil {
		if n.stale(t) {
			metrics.DetailFetches.WithLabelValues("stale").Inc()
			return false, nil
		}
		metrics.DetailFetches.WithLabelValues("error").Inc()
		return false, &DetailFetchError{PlatformID: res.PlatformID, EntityID: res.Entity.ID, Err: err}
	}
	if detail == nil {
		return false, nil
	}

	if !n.Apply(t, *detail) {
		logger.Debugf("Discarding stale detail for %s on %s", res.Entity.ID, res.PlatformID)
		metrics.DetailFetches.WithLabelValues("stale").Inc()
		return false, nil
	}
	metrics.DetailFetches.WithLabelValues("applied").Inc()
	return true, nil
}

func (n *Navigator) stale(t Ticket) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return t.Generation != n.generation
}

func mergeDetail(res models.MultiPlatformResult, detail models.EntityData) models.MultiPlatformResult {
	if detail.ID != "" {
		res.Entity.ID = detail.ID
	}
	if detail.Type != "" {
		clean := platform.CleanType(detail.Type)
		res.Entity.CleanType = clean
		res.Entity.Type = platform.DisplayType(res.PlatformType, clean)
	}
	if detail.Name != "" {
		res.Entity.Name = detail.Name
	}
	if detail.Value != "" {
		res.Entity.Value = detail.Value
	}
	if len(detail.Data) > 0 {
		merged := copyData(res.Entity.Data)
		if merged == nil {
			merged = make(map[string]interface{}, len(detail.Data))
		}
		for k, v := range detail.Data {
			merged[k] = v
		}
		res.Entity.Data = merged
	}
	return res
}
