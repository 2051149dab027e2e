// Package metrics exposes Prometheus collectors for the sync pipelines.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal  *prometheus.CounterVec
	fetchRetriesTotal   prometheus.Counter
	fetchFailuresTotal  prometheus.Counter
	recordsTotal        *prometheus.CounterVec
	stageDurationSecond *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_fetch_attempts_total",
				Help: "HTTP fetch attempts, labeled by method and outcome.",
			},
			[]string{"method", "outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sync_fetch_retries_total",
				Help: "HTTP fetch attempts that were retried after a failure.",
			},
		)

		fetchFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sync_fetch_failures_total",
				Help: "Fetches that failed after exhausting all retries.",
			},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_records_total",
				Help: "Records produced, labeled by kind (club, roster, player).",
			},
			[]string{"kind"},
		)

		stageDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_stage_duration_seconds",
				Help:    "Duration of each pipeline stage.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"stage"},
		)
	})
}

// CountFetchAttempt records one HTTP attempt.
func CountFetchAttempt(method, outcome string) {
	if fetchAttemptsTotal != nil {
		fetchAttemptsTotal.WithLabelValues(method, outcome).Inc()
	}
}

// CountFetchRetry records a retried attempt.
func CountFetchRetry() {
	if fetchRetriesTotal != nil {
		fetchRetriesTotal.Inc()
	}
}

// CountFetchFailure records a fetch that exhausted its retries.
func CountFetchFailure() {
	if fetchFailuresTotal != nil {
		fetchFailuresTotal.Inc()
	}
}

// CountRecords adds produced records of the given kind.
func CountRecords(kind string, n int) {
	if recordsTotal != nil && n > 0 {
		recordsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveStage records the duration of a pipeline stage.
func ObserveStage(stage string, d time.Duration) {
	if stageDurationSecond != nil {
		stageDurationSecond.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// Serve starts the debug/metrics listener on addr. It returns the server so
// the caller can shut it down; a listen failure surfaces on errCh.
func Serve(addr string, errCh chan<- error) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if errCh != nil {
				errCh <- err
			}
		}
	}()
	return srv
}
