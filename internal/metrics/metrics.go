package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the reconciler.
	Registry = prometheus.NewRegistry()

	// RecordsProcessed counts per-record outcomes: linked, unmatched,
	// ambiguous, conflict, no_operation, skipped.
	RecordsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reconcile_records_total", Help: "Staging records by provider and outcome."},
		[]string{"provider", "outcome"},
	)
	// MatchesByTier counts successful matches by the tier/method that won.
	MatchesByTier = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reconcile_matches_total", Help: "Successful matches by provider, tier and method."},
		[]string{"provider", "tier", "method"},
	)
	// TickDuration records linking-worker tick durations in seconds.
	TickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "reconcile_tick_duration_seconds", Help: "Linking worker tick duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"provider"},
	)
	// IngestedRecords counts staging rows upserted by ingestion adapters.
	IngestedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_records_total", Help: "Staging records upserted by provider."},
		[]string{"provider"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(RecordsProcessed)
		Registry.MustRegister(MatchesByTier)
		Registry.MustRegister(TickDuration)
		Registry.MustRegister(IngestedRecords)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
