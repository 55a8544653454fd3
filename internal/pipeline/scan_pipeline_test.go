package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelscan/pkg/models"
)

type sliceSource struct {
	mu       sync.Mutex
	payloads [][]byte
	closed   bool
}

func (s *sliceSource) Pop(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if len(s.payloads) > 0 {
		p := s.payloads[0]
		s.payloads = s.payloads[1:]
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

type memoryWriter struct {
	mu       sync.Mutex
	results  []*models.ScanResult
	rows     []*models.MatchRow
	failures int
	want     int
	done     chan struct{}
}

func newMemoryWriter(want int) *memoryWriter {
	return &memoryWriter{want: want, done: make(chan struct{})}
}

func (w *memoryWriter) WriteResults(results []*models.ScanResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("sink unavailable")
	}
	w.results = append(w.results, results...)
	if len(w.results) >= w.want {
		select {
		case <-w.done:
		default:
			close(w.done)
		}
	}
	return nil
}

func (w *memoryWriter) WriteMatches(rows []*models.MatchRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, rows...)
	return nil
}

func (w *memoryWriter) Close() error { return nil }

type memoryStore struct {
	mu     sync.Mutex
	latest map[string]*models.ScanResult
}

func (s *memoryStore) Latest(ctx context.Context, pageURL string) (*models.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[pageURL], nil
}

func (s *memoryStore) Save(ctx context.Context, r *models.ScanResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.latest[r.PageURL]; ok && prev.Sequence > r.Sequence {
		return false, nil
	}
	s.latest[r.PageURL] = r
	return true, nil
}

func (s *memoryStore) Close() error { return nil }

func TestScanPipelineRunWritesResultsAndMatches(t *testing.T) {
	source := &sliceSource{payloads: [][]byte{
		[]byte(`{"scan_id":"s1","page_url":"https://a","seq":1,"text":"Emotet here","batches":{"domain_objects":[{"type":"Malware","name":"Emotet","found":true,"platform_id":"octi","platform_type":"opencti","entity_id":"malware--1"}]}}`),
		[]byte(`not json`),
		[]byte(`{"scan_id":"s2","page_url":"https://b","seq":1,"text":"nothing to see","batches":{"domain_objects":[{"type":"Malware","name":"Emotet"}]}}`),
	}}
	writer := newMemoryWriter(2)
	writer.failures = 1

	p := NewScanPipeline(source, NewDetector(nil, false), writer, writer, nil, Options{
		Workers:       2,
		BatchSize:     1,
		FlushInterval: 10 * time.Millisecond,
		RetryDelay:    time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	select {
	case <-writer.done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not write results")
	}
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	require.NoError(t, p.Close())
	assert.True(t, source.closed)

	writer.mu.Lock()
	defer writer.mu.Unlock()
	byScan := make(map[string]*models.ScanResult)
	for _, r := range writer.results {
		byScan[r.ScanID] = r
	}
	require.Contains(t, byScan, "s1")
	require.Contains(t, byScan, "s2")
	require.Len(t, byScan["s1"].Entities, 1)
	assert.Empty(t, byScan["s2"].Entities)

	require.NotEmpty(t, writer.rows)
	assert.Equal(t, "octi", writer.rows[0].PlatformID)
}

func TestScanPipelineHandleMergesStoredResultForSameScan(t *testing.T) {
	stored := &models.ScanResult{
		ScanID:  "s1",
		PageURL: "https://a",
		Entities: []models.ScanResultEntity{
			{ID: "x", Type: "Malware", Name: "Emotet", Found: true,
				PlatformMatches: []models.PlatformMatch{{PlatformID: "octi", PlatformType: models.FamilyOpenCTI, EntityID: "malware--1"}},
				MatchedStrings:  []string{"Emotet"}},
		},
	}
	store := &memoryStore{latest: map[string]*models.ScanResult{"https://a": stored}}
	p := NewScanPipeline(&sliceSource{}, NewDetector(nil, false), newMemoryWriter(1), nil, store, Options{})

	res, ok := p.Handle(context.Background(), []byte(`{"scan_id":"s1","page_url":"https://a","seq":2,"batches":{"simulation_entities":[{"type":"Malware","name":"emotet","found":true,"platform_id":"oaev","entity_id":"m-1"}]}}`))
	require.True(t, ok)
	require.Len(t, res.Entities, 1)
	assert.Len(t, res.Entities[0].PlatformMatches, 2)
	assert.Len(t, stored.Entities[0].PlatformMatches, 1, "previous result is not modified")
	assert.Same(t, res, store.latest["https://a"], "merged result is saved")

	res, ok = p.Handle(context.Background(), []byte(`{"scan_id":"s2","page_url":"https://a","seq":3,"batches":{"simulation_entities":[{"type":"Malware","name":"emotet","found":true,"platform_id":"oaev","entity_id":"m-1"}]}}`))
	require.True(t, ok)
	require.Len(t, res.Entities, 1)
	assert.Len(t, res.Entities[0].PlatformMatches, 1, "a new scan starts from scratch")
}

func TestScanPipelineHandleSavesBeforeNextEventOfSameScan(t *testing.T) {
	store := &memoryStore{latest: map[string]*models.ScanResult{}}
	writer := newMemoryWriter(1)
	p := NewScanPipeline(&sliceSource{}, NewDetector(nil, false), writer, nil, store, Options{})

	_, ok := p.Handle(context.Background(), []byte(`{"scan_id":"s1","page_url":"https://a","seq":1,"batches":{"domain_objects":[{"type":"Intrusion-Set","name":"APT29","found":true,"platform_id":"octi","entity_id":"is-1"}]}}`))
	require.True(t, ok)
	res, ok := p.Handle(context.Background(), []byte(`{"scan_id":"s1","page_url":"https://a","seq":2,"batches":{"domain_objects":[{"type":"Malware","name":"Emotet","found":true,"platform_id":"octi","entity_id":"m-1"}]}}`))
	require.True(t, ok)

	assert.Equal(t, []string{"APT29", "Emotet"}, entityNames(res.Entities))
	require.Contains(t, store.latest, "https://a")
	assert.Equal(t, []string{"APT29", "Emotet"}, entityNames(store.latest["https://a"].Entities))
	assert.EqualValues(t, 2, store.latest["https://a"].Sequence)
	assert.Empty(t, writer.results, "nothing was flushed")
}

func TestScanPipelineHandleKeepsNewerSequenceOnLateEvent(t *testing.T) {
	store := &memoryStore{latest: map[string]*models.ScanResult{}}
	p := NewScanPipeline(&sliceSource{}, NewDetector(nil, false), newMemoryWriter(1), nil, store, Options{})

	_, ok := p.Handle(context.Background(), []byte(`{"scan_id":"s1","page_url":"https://a","seq":5,"batches":{"domain_objects":[{"type":"Intrusion-Set","name":"APT29","found":true}]}}`))
	require.True(t, ok)
	res, ok := p.Handle(context.Background(), []byte(`{"scan_id":"s1","page_url":"https://a","seq":4,"batches":{"domain_objects":[{"type":"Malware","name":"Emotet","found":true}]}}`))
	require.True(t, ok)

	assert.EqualValues(t, 5, res.Sequence)
	assert.Equal(t, []string{"APT29", "Emotet"}, entityNames(store.latest["https://a"].Entities))
}

func TestScanPipelineHandleConcurrentEventsOfOneScan(t *testing.T) {
	store := &memoryStore{latest: map[string]*models.ScanResult{}}
	p := NewScanPipeline(&sliceSource{}, NewDetector(nil, false), newMemoryWriter(1), nil, store, Options{})

	names := []string{"APT28", "APT29", "Emotet", "TrickBot", "Qakbot", "Lazarus", "Conti", "Ryuk"}
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(seq int, name string) {
			defer wg.Done()
			payload := fmt.Sprintf(`{"scan_id":"s1","page_url":"https://a","seq":%d,"batches":{"domain_objects":[{"type":"Malware","name":%q,"found":true}]}}`, seq+1, name)
			_, ok := p.Handle(context.Background(), []byte(payload))
			assert.True(t, ok)
		}(i, name)
	}
	wg.Wait()

	require.Contains(t, store.latest, "https://a")
	assert.ElementsMatch(t, names, entityNames(store.latest["https://a"].Entities))
}

func entityNames(entities []models.ScanResultEntity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Name)
	}
	return out
}
