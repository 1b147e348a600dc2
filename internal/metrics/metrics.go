// Package metrics defines Prometheus metrics for auditscope.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditscope_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditscope_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditscope_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auditscope_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	TruncatedResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditscope_http_truncated_responses_total",
			Help: "API responses carrying a truncated audit report",
		},
		[]string{"path"},
	)

	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditscope_upstream_request_duration_seconds",
			Help:    "Upstream API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditscope_entity_cache_lookups_total",
			Help: "Entity cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	PagesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auditscope_audit_pages_fetched_total",
			Help: "Audit log pages fetched",
		},
	)

	TruncatedFetches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auditscope_truncated_fetches_total",
			Help: "Fetches stopped by the page cap",
		},
	)

	LookupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditscope_entity_lookup_failures_total",
			Help: "Entity lookups that failed during enrichment",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, RequestsInFlight, TruncatedResponses, ErrorsTotal,
		UpstreamDuration, CacheLookups,
		PagesFetched, TruncatedFetches, LookupFailures,
	)
}

// ClientObserver records upstream client events. It satisfies client.Observer.
type ClientObserver struct{}

// ObserveRequest records one upstream call.
func (ClientObserver) ObserveRequest(endpoint string, status int, d time.Duration) {
	UpstreamDuration.WithLabelValues(endpoint, strconv.Itoa(status)).Observe(d.Seconds())
	if endpoint == "audit_logs.search" && status >= 200 && status < 300 {
		PagesFetched.Inc()
	}
}

// ObserveCache records one entity cache lookup.
func (ClientObserver) ObserveCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(kind, result).Inc()
}
