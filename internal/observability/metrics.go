package observability

import (
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate by route template and status class.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Watch for: p95 above the forecast API timeout.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Forecast API call rate by outcome (success, client_error, server_error, error).
	ForecastAPICallsTotal *prometheus.CounterVec

	// Forecast API latency. Watch for: p99 approaching weather_api.timeout.
	ForecastAPIDuration *prometheus.HistogramVec

	// Forecast failures by error category (transport, api_status, parsing, ...).
	ForecastAPIErrorsTotal *prometheus.CounterVec

	// Completed analyses.
	AnalysesTotal prometheus.Counter

	// Analyses by location (allow-list; others go to "other").
	AnalysesByLocationTotal *prometheus.CounterVec

	// Assessed forecast hours by risk level. Watch for: rising share of levels 4 and 5.
	AssessedHoursTotal *prometheus.CounterVec

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ForecastAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastApiCallsTotal",
			Help: "Total number of weather provider forecast calls",
		},
		[]string{"status"},
	)
	ForecastAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecastApiDurationSeconds",
			Help:    "Weather provider forecast latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	ForecastAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastApiErrorsTotal",
			Help: "Weather provider forecast failures by error category",
		},
		[]string{"category"},
	)
	AnalysesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analysesTotal",
			Help: "Total number of completed mining weather analyses",
		},
	)
	AnalysesByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysesByLocationTotal",
			Help: "Analyses by location (allow-list; others use location=other)",
		},
		[]string{"location"},
	)
	AssessedHoursTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessedHoursTotal",
			Help: "Forecast hours assessed, by risk level",
		},
		[]string{"riskLevel"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ForecastAPICallsTotal, ForecastAPIDuration, ForecastAPIErrorsTotal,
		AnalysesTotal, AnalysesByLocationTotal, AssessedHoursTotal,
		RateLimitDeniedTotal,
	)
}

// SetTrackedLocations sets the allow-list for location metrics. Non-tracked locations increment "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// RecordAnalysis records a completed analysis and the risk level of each assessed hour.
func RecordAnalysis(location string, levels []int) {
	AnalysesTotal.Inc()
	AnalysesByLocationTotal.WithLabelValues(MetricLocationLabel(location)).Inc()
	for _, l := range levels {
		AssessedHoursTotal.WithLabelValues(strconv.Itoa(l)).Inc()
	}
}

// MetricLocationLabel returns the location itself when tracked, otherwise "other".
func MetricLocationLabel(location string) string {
	loc := normalizeLocationForMetrics(location)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc] // nil map read is safe in Go
	trackedLocationsMu.RUnlock()
	if ok {
		return loc
	}
	return "other"
}

func normalizeLocationForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
