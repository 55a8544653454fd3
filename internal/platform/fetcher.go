package platform

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"intelscan/internal/transport/httpjson"
	"intelscan/pkg/models"
)

const defaultFetchTimeout = 10 * time.Second

// HTTPFetcher fetches entity details from a platform's HTTP API.
type HTTPFetcher struct {
	registry *Registry
	client   *http.Client
}

// NewHTTPFetcher creates a fetcher that resolves platform URLs through reg.
func NewHTTPFetcher(reg *Registry) *HTTPFetcher {
	return &HTTPFetcher{
		registry: reg,
		client:   &http.Client{},
	}
}

type detailRequest struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// FetchEntityDetail posts {id, type} to <platform url>/entities/detail and
// decodes the returned entity.
func (f *HTTPFetcher) FetchEntityDetail(ctx context.Context, entityID, entityType, platformID string) (*models.EntityData, error) {
	p, ok := f.registry.Get(platformID)
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", platformID)
	}
	if strings.TrimSpace(p.URL) == "" {
		return nil, fmt.Errorf("platform %q has no URL", platformID)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := strings.TrimRight(p.URL, "/") + "/entities/detail"
	var entity models.EntityData
	if err := httpjson.PostJSON(ctx, f.client, endpoint, p.Headers, detailRequest{ID: entityID, Type: entityType}, &entity); err != nil {
		return nil, fmt.Errorf("detail request for %s failed: %w", entityID, err)
	}
	return &entity, nil
}
