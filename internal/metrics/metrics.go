// Package metrics exposes Prometheus collectors for the notice sync service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncRunsTotal              *prometheus.CounterVec
	recordsIngestedTotal       prometheus.Counter
	entryFailuresTotal         *prometheus.CounterVec
	summariesDegradedTotal     prometheus.Counter
	imagesSkippedTotal         prometheus.Counter
	fetchTotal                 *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		syncRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notice_sync_runs_total",
				Help: "Total number of sync runs, labeled by outcome.",
			},
			[]string{"status"},
		)

		recordsIngestedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "notice_records_ingested_total",
				Help: "Total number of notices newly inserted into the store.",
			},
		)

		entryFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notice_entry_failures_total",
				Help: "Total number of listing entries skipped, labeled by pipeline stage.",
			},
			[]string{"stage"},
		)

		summariesDegradedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "notice_summaries_degraded_total",
				Help: "Total number of notices persisted without a summary.",
			},
		)

		imagesSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "notice_images_skipped_total",
				Help: "Total number of inline images left out of a summary because they could not be fetched.",
			},
		)

		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notice_fetch_total",
				Help: "Total number of outbound fetches, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "notice_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSyncRun increments the sync run counter for the given status.
func ObserveSyncRun(status string) {
	Init()
	syncRunsTotal.WithLabelValues(status).Inc()
}

// AddIngested adds n newly inserted records.
func AddIngested(n int) {
	Init()
	if n > 0 {
		recordsIngestedTotal.Add(float64(n))
	}
}

// ObserveEntryFailure counts one skipped entry.
func ObserveEntryFailure(stage string) {
	Init()
	entryFailuresTotal.WithLabelValues(stage).Inc()
}

// ObserveSummaryDegraded counts one summary that fell back to empty.
func ObserveSummaryDegraded() {
	Init()
	summariesDegradedTotal.Inc()
}

// ObserveImageSkipped counts one inline image dropped from a summary request.
func ObserveImageSkipped() {
	Init()
	imagesSkippedTotal.Inc()
}

// ObserveFetch counts one outbound fetch. status is the HTTP code, or "error"
// when no response was received.
func ObserveFetch(kind string, status int) {
	Init()
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	fetchTotal.WithLabelValues(kind, label).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}
