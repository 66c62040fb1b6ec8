package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for fetch counters.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
	OutcomeStale     = "stale"
)

var (
	ListFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calllog",
		Name:      "list_fetches_total",
		Help:      "Call list fetches by outcome.",
	}, []string{"outcome"})

	ListFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "calllog",
		Name:      "list_fetch_duration_seconds",
		Help:      "Latency of call list fetches that reached the API.",
		Buckets:   prometheus.DefBuckets,
	})

	RecordingFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calllog",
		Name:      "recording_fetches_total",
		Help:      "Recording downloads by outcome.",
	}, []string{"outcome"})

	RecordingsHeld = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "calllog",
		Name:      "recordings_held",
		Help:      "Recordings currently held by open players.",
	})

	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "calllog",
		Name:      "sessions",
		Help:      "Live dashboard sessions.",
	})
)
