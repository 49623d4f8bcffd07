// Package metrics holds the Prometheus collectors shared by the pipeline and the API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "harvester"

var (
	// Jobs counts terminal job outcomes by stage and outcome (stored, empty, failed)
	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Jobs that reached a terminal outcome.",
	}, []string{"stage", "outcome"})

	// Retries counts attempts that failed and were retried after a backoff
	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_total",
		Help:      "Attempts retried after a transport failure.",
	}, []string{"stage"})

	// FetchDuration observes the latency of single attempts
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Latency of one remote attempt.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
	}, []string{"stage"})

	// RunsActive is the number of runs currently executing
	RunsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "runs_active",
		Help:      "Harvest runs in progress.",
	})
)

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
