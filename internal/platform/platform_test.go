package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelscan/pkg/models"
)

func TestDisplayAndCleanType(t *testing.T) {
	assert.Equal(t, "oaev-Asset", DisplayType(models.FamilyOpenAEV, "Asset"))
	assert.Equal(t, "oaev-Asset", DisplayType(models.FamilyOpenAEV, "oaev-Asset"))
	assert.Equal(t, "Malware", DisplayType(models.FamilyOpenCTI, "Malware"))
	assert.Equal(t, "Asset", CleanType("oaev-Asset"))
	assert.Equal(t, "Malware", CleanType("Malware"))
	assert.True(t, IsKnowledgeBase(" OpenCTI "))
	assert.False(t, IsKnowledgeBase(models.FamilyOpenAEV))
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	reg := NewRegistry([]models.Platform{
		{ID: "octi-1", Name: "Main", Type: "OpenCTI"},
		{ID: " ", Name: "broken"},
	})

	snap := reg.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, models.FamilyOpenCTI, snap[0].Type)

	snap[0].Name = "changed"
	p, ok := reg.Get("octi-1")
	require.True(t, ok)
	assert.Equal(t, "Main", p.Name)

	reg.Replace(nil)
	_, ok = reg.Get("octi-1")
	assert.False(t, ok)
}

func TestHTTPFetcherFetchEntityDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/entities/detail", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		var req detailRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "malware--1", req.ID)
		assert.Equal(t, "Malware", req.Type)
		_ = json.NewEncoder(w).Encode(models.EntityData{ID: req.ID, Type: req.Type, Name: "Emotet"})
	}))
	defer srv.Close()

	reg := NewRegistry([]models.Platform{{ID: "octi-1", Type: "opencti", URL: srv.URL + "/api/", Headers: map[string]string{"Authorization": "Bearer token"}}})
	got, err := NewHTTPFetcher(reg).FetchEntityDetail(context.Background(), "malware--1", "Malware", "octi-1")
	require.NoError(t, err)
	assert.Equal(t, "Emotet", got.Name)
}

func TestHTTPFetcherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	reg := NewRegistry([]models.Platform{{ID: "octi-1", URL: srv.URL}, {ID: "no-url"}})
	f := NewHTTPFetcher(reg)

	_, err := f.FetchEntityDetail(context.Background(), "x", "Malware", "octi-1")
	assert.ErrorContains(t, err, "502")

	_, err = f.FetchEntityDetail(context.Background(), "x", "Malware", "missing")
	assert.ErrorContains(t, err, "unknown platform")

	_, err = f.FetchEntityDetail(context.Background(), "x", "Malware", "no-url")
	assert.ErrorContains(t, err, "no URL")
}
