// Package metrics exposes Prometheus collectors for the plan cache and the
// plan compiler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup results
const (
	ResultHit            = "hit"
	ResultMiss           = "miss"
	ResultBindingFailure = "binding_failure"
)

var (
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plancache_lookups_total",
			Help: "Total number of plan cache lookups by result.",
		},
		[]string{"result"},
	)
	CacheInserts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plancache_inserts_total",
			Help: "Total number of plans inserted into the plan cache.",
		},
	)
	BindingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plancache_binding_failures_total",
			Help: "Total number of structural matches whose literals could not be bound.",
		},
	)
	CompileSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plan_compile_seconds",
			Help:    "Time spent compiling query plans.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(CacheLookups)
	prometheus.MustRegister(CacheInserts)
	prometheus.MustRegister(BindingFailures)
	prometheus.MustRegister(CompileSeconds)
}

// ObserveLookup counts one cache lookup
func ObserveLookup(result string) {
	CacheLookups.WithLabelValues(result).Inc()
	if result == ResultBindingFailure {
		BindingFailures.Inc()
	}
}

// ObserveBindingFailure counts a binding failure found outside a lookup
func ObserveBindingFailure() {
	BindingFailures.Inc()
}

// ObserveCompile records one plan compilation
func ObserveCompile(d time.Duration) {
	CompileSeconds.Observe(d.Seconds())
}

// ObserveInsert counts one cache insert
func ObserveInsert() {
	CacheInserts.Inc()
}

func HandleHTTP() {
	http.Handle("/metrics", promhttp.Handler())
}
