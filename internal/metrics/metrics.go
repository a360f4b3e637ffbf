// Package metrics exposes Prometheus collectors for the web monitor.
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
	checksTotal                *prometheus.CounterVec
	checkDurationSeconds       *prometheus.HistogramVec
	captureFailuresTotal       *prometheus.CounterVec
	analysisErrorsTotal        *prometheus.CounterVec
	reporterErrorsTotal        *prometheus.CounterVec
	rateLimitWaitSeconds       *prometheus.HistogramVec
	cyclesTotal                prometheus.Counter
	cycleInProgress            prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. Every observer calls it, so explicit calls
// are only needed to expose the series before the first observation.
func Init() {
	once.Do(func() {
		checksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webmonitor_checks_total",
				Help: "Total number of page checks, labeled by site and analysis path.",
			},
			[]string{"site", "path"},
		)

		checkDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webmonitor_check_duration_seconds",
				Help:    "Histogram of end-to-end check latency, labeled by analysis path.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"path"},
		)

		captureFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webmonitor_capture_failures_total",
				Help: "Screenshot captures that failed and fell back to text analysis.",
			},
			[]string{"site"},
		)

		analysisErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webmonitor_analysis_errors_total",
				Help: "Model calls that failed, labeled by content kind.",
			},
			[]string{"kind"},
		)

		reporterErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webmonitor_reporter_errors_total",
				Help: "Reports a sink failed to accept, labeled by sink.",
			},
			[]string{"sink"},
		)

		rateLimitWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webmonitor_model_rate_limit_wait_seconds",
				Help:    "Time model calls spent waiting for a rate-limit token, labeled by model.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"model"},
		)

		cyclesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webmonitor_cycles_total",
				Help: "Completed check cycles.",
			},
		)

		cycleInProgress = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "webmonitor_cycle_in_progress",
				Help: "1 while a check cycle is running, 0 while idle.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webmonitor_http_requests_total",
				Help: "Total number of status-server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webmonitor_http_request_duration_seconds",
				Help:    "Histogram of status-server latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
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
	Init()
	return promhttp.Handler()
}

// ObserveCheck records one finished check.
func ObserveCheck(rawURL, path string, duration time.Duration) {
	Init()
	checksTotal.WithLabelValues(SanitizeSite(rawURL), path).Inc()
	checkDurationSeconds.WithLabelValues(path).Observe(duration.Seconds())
}

// ObserveCaptureFailure counts a screenshot that fell back to text.
func ObserveCaptureFailure(rawURL string) {
	Init()
	captureFailuresTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveAnalysisError counts a failed model call.
func ObserveAnalysisError(kind string) {
	Init()
	analysisErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveReporterError counts a report a sink rejected.
func ObserveReporterError(sink string) {
	Init()
	reporterErrorsTotal.WithLabelValues(sink).Inc()
}

// ObserveRateLimitWait records time spent waiting for a model-call token.
func ObserveRateLimitWait(model string, waited time.Duration) {
	Init()
	rateLimitWaitSeconds.WithLabelValues(model).Observe(waited.Seconds())
}

// CycleStarted flips the in-progress gauge on.
func CycleStarted() {
	Init()
	cycleInProgress.Set(1)
}

// CycleFinished flips the in-progress gauge off and counts the cycle.
func CycleFinished() {
	Init()
	cycleInProgress.Set(0)
	cyclesTotal.Inc()
}

// ObserveHTTPRequest increments the status-server request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
