// Package metrics exposes Prometheus counters for scans, matches and
// detail fetches.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intelscan/internal/logger"
)

const namespace = "intelscan"

var (
	// ScanEvents counts scan events by outcome (ok, parse_error).
	ScanEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scan_events_total",
		Help:      "Scan events processed, by outcome.",
	}, []string{"outcome"})

	// RecordsSkipped counts detection records dropped at intake because they
	// could not be decoded, by batch.
	RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Scan event records skipped at intake, by batch.",
	}, []string{"batch"})

	// MatchesAccepted counts literal matches accepted by the scanner.
	MatchesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_accepted_total",
		Help:      "Candidate literal matches accepted.",
	})

	// MatchesRejected counts rejected literal matches by reason (boundary, overlap).
	MatchesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_rejected_total",
		Help:      "Candidate literal matches rejected, by reason.",
	}, []string{"reason"})

	// EntitiesAggregated counts entities emitted by the aggregator.
	EntitiesAggregated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entities_aggregated_total",
		Help:      "Aggregated scan result entities, by found state.",
	}, []string{"found"})

	// DetailFetches counts detail fetches by outcome (applied, stale, error).
	DetailFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detail_fetches_total",
		Help:      "Entity detail fetches, by outcome.",
	}, []string{"outcome"})

	// StaleResults counts scan results rejected by the store as older than the stored sequence.
	StaleResults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_results_total",
		Help:      "Scan results discarded because a newer sequence was already stored.",
	})
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Metrics endpoint listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
