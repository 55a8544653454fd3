// Package pipeline wires scan-event intake, detection, aggregation and
// output into a concurrent read -> work -> write loop.
package pipeline

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"intelscan/internal/logger"
	"intelscan/internal/metrics"
	"intelscan/internal/transform/scanevent"
	"intelscan/pkg/models"
)

// Options configures the scan pipeline.
type Options struct {
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	RetryDelay    time.Duration
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 2 * time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
}

// ScanPipeline consumes scan events and writes aggregated results.
type ScanPipeline struct {
	source      Source
	detector    *Detector
	writer      ResultWriter
	matchWriter MatchWriter
	store       ResultStore
	opts        Options
	pageLocks   [64]sync.Mutex
}

// NewScanPipeline creates a pipeline. matchWriter and store may be nil.
func NewScanPipeline(source Source, detector *Detector, writer ResultWriter, matchWriter MatchWriter, store ResultStore, opts Options) *ScanPipeline {
	opts.applyDefaults()
	return &ScanPipeline{
		source:      source,
		detector:    detector,
		writer:      writer,
		matchWriter: matchWriter,
		store:       store,
		opts:        opts,
	}
}

// Run starts the pipeline loop and blocks until ctx is cancelled.
func (p *ScanPipeline) Run(ctx context.Context) error {
	logger.Infof("Scan pipeline started (workers=%d, batch=%d)", p.opts.Workers, p.opts.BatchSize)

	msgCh := make(chan []byte, p.opts.Workers*4)
	workCh := make(chan *models.ScanResult, p.opts.Workers*4)

	var readers, workers, writers sync.WaitGroup

	readers.Add(1)
	go func() {
		defer readers.Done()
		p.readLoop(ctx, msgCh)
	}()

	for i := 0; i < p.opts.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.workerLoop(ctx, msgCh, workCh)
		}()
	}

	writers.Add(1)
	go func() {
		defer writers.Done()
		p.writeLoop(ctx, workCh)
	}()

	readers.Wait()
	close(msgCh)
	workers.Wait()
	close(workCh)
	writers.Wait()
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *ScanPipeline) Close() error {
	if p.matchWriter != nil {
		if err := p.matchWriter.Close(); err != nil {
			logger.Errorf("Failed to close match writer: %v", err)
		}
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			logger.Errorf("Failed to close result store: %v", err)
		}
	}
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			logger.Errorf("Failed to close result writer: %v", err)
		}
	}
	if p.source != nil {
		return p.source.Close()
	}
	return nil
}

func (p *ScanPipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := p.source.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop scan event: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *ScanPipeline) workerLoop(ctx context.Context, in <-chan []byte, out chan<- *models.ScanResult) {
	for payload := range in {
		result, ok := p.Handle(ctx, payload)
		if !ok {
			continue
		}
		out <- result
	}
}

// Handle parses and processes one payload. When a store is configured the
// event is merged into the stored result for the same scan and saved back
// before Handle returns, so later events of that scan build on it.
func (p *ScanPipeline) Handle(ctx context.Context, payload []byte) (*models.ScanResult, bool) {
	ev, err := scanevent.Parse(payload)
	if err != nil {
		logger.Warnf("Failed to parse scan event: %v", err)
		metrics.ScanEvents.WithLabelValues("parse_error").Inc()
		return nil, false
	}

	if p.store == nil || ev.PageURL == "" {
		result := p.detector.Process(ev, nil)
		metrics.ScanEvents.WithLabelValues("ok").Inc()
		return result, true
	}

	mu := p.pageLock(ev.PageURL)
	mu.Lock()
	defer mu.Unlock()

	// Events already handed to a worker are stored even during shutdown.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var existing []models.ScanResultEntity
	var prevSeq int64
	prev, err := p.store.Latest(storeCtx, ev.PageURL)
	if err != nil {
		logger.Warnf("Failed to load stored result for %s: %v", ev.PageURL, err)
	} else if prev != nil && prev.ScanID == ev.ScanID {
		existing = prev.Entities
		prevSeq = prev.Sequence
	}

	result := p.detector.Process(ev, existing)
	if prevSeq > result.Sequence {
		result.Sequence = prevSeq
	}
	if saved, err := p.store.Save(storeCtx, result); err != nil {
		logger.Errorf("Failed to store result for %s: %v", result.PageURL, err)
	} else if !saved {
		logger.Debugf("Stored result for %s is newer than seq %d", result.PageURL, result.Sequence)
	}
	metrics.ScanEvents.WithLabelValues("ok").Inc()
	return result, true
}

// pageLock serializes load-merge-save for one page across workers.
func (p *ScanPipeline) pageLock(pageURL string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pageURL))
	return &p.pageLocks[h.Sum32()%uint32(len(p.pageLocks))]
}

func (p *ScanPipeline) writeLoop(ctx context.Context, in <-chan *models.ScanResult) {
	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()

	var batch []*models.ScanResult

	// retry keeps calling fn until it succeeds or ctx is done.
	retry := func(what string, fn func() error) bool {
		for {
			err := fn()
			if err == nil {
				return true
			}
			logger.Errorf("Failed to write %s: %v", what, err)
			select {
			case <-ctx.Done():
				return false
			case <-time.After(p.opts.RetryDelay):
			}
		}
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if p.matchWriter != nil {
			var rows []*models.MatchRow
			for _, r := range batch {
				rows = append(rows, r.MatchRows()...)
			}
			if len(rows) > 0 && !retry("match rows", func() error { return p.matchWriter.WriteMatches(rows) }) {
				return
			}
		}
		if !retry("scan results", func() error { return p.writer.WriteResults(batch) }) {
			return
		}
		batch = nil
	}

	for {
		select {
		case <-ticker.C:
			flush()
		case r, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= p.opts.BatchSize {
				flush()
			}
		}
	}
}
