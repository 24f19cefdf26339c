package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "httracker_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	fetchCycles       *prometheus.CounterVec
	fetchCycleLatency *prometheus.HistogramVec
	fetchErrors       *prometheus.CounterVec
	readingsIngested  prometheus.Counter
	lastSuccess       prometheus.Gauge

	windowQueries       *prometheus.CounterVec
	windowQueryLatency  *prometheus.HistogramVec
	exportsTotal        *prometheus.CounterVec
	publishedMessages   *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
)

// Init registers the collectors with the default registry. Later calls are no-ops.
func Init() {
	registerOnce.Do(func() {
		fetchCycles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_cycles_total",
				Help: "Total fetch cycles by result",
			},
			[]string{"result"},
		)
		fetchCycleLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fetch_cycle_latency_seconds",
				Help:    "Fetch cycle latency (fetch and commit) in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		fetchErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_errors_total",
				Help: "Total failed fetch cycles by category",
			},
			[]string{"category"},
		)
		readingsIngested = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_ingested_total",
				Help: "Total readings committed to the store",
			},
		)
		lastSuccess = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_success_timestamp_seconds",
				Help: "Unix time of the last committed fetch cycle",
			},
		)
		windowQueries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "window_queries_total",
				Help: "Total window queries by result",
			},
			[]string{"result"},
		)
		windowQueryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "window_query_latency_seconds",
				Help:    "Window query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Total window exports by format and result",
			},
			[]string{"format", "result"},
		)
		publishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mqtt_messages_total",
				Help: "Total MQTT publish attempts by kind and result",
			},
			[]string{"kind", "result"},
		)
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)
		prometheus.MustRegister(
			fetchCycles,
			fetchCycleLatency,
			fetchErrors,
			readingsIngested,
			lastSuccess,
			windowQueries,
			windowQueryLatency,
			exportsTotal,
			publishedMessages,
			httpRequests,
			httpRequestDuration,
		)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchCycle records one scheduler cycle.
func ObserveFetchCycle(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if fetchCycles != nil {
		fetchCycles.WithLabelValues(result).Inc()
	}
	if fetchCycleLatency != nil {
		fetchCycleLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncFetchError counts a failed cycle under its error category.
func IncFetchError(category string) {
	if category == "" {
		category = "unknown"
	}
	if fetchErrors != nil {
		fetchErrors.WithLabelValues(category).Inc()
	}
}

func AddReadingsIngested(n int) {
	if readingsIngested != nil && n > 0 {
		readingsIngested.Add(float64(n))
	}
}

func SetLastSuccess(t time.Time) {
	if lastSuccess != nil {
		lastSuccess.Set(float64(t.Unix()))
	}
}

func ObserveWindowQuery(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if windowQueries != nil {
		windowQueries.WithLabelValues(result).Inc()
	}
	if windowQueryLatency != nil {
		windowQueryLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

func IncExport(format, result string) {
	if exportsTotal != nil {
		exportsTotal.WithLabelValues(format, result).Inc()
	}
}

func IncPublished(kind, result string) {
	if publishedMessages != nil {
		publishedMessages.WithLabelValues(kind, result).Inc()
	}
}

// ObserveHTTPRequest records a served request. route must be the mux pattern,
// not the raw path.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	if httpRequestDuration != nil {
		httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}
