package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/mining-weather-advisor/internal/client"
	"github.com/kjstillabower/mining-weather-advisor/internal/health"
	"github.com/kjstillabower/mining-weather-advisor/internal/observability"
	"github.com/kjstillabower/mining-weather-advisor/internal/render"
	"github.com/kjstillabower/mining-weather-advisor/internal/service"
	"github.com/kjstillabower/mining-weather-advisor/internal/validation"
)

// HealthConfig holds the degraded-state thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
}

// AnalysisDefaults fill in query parameters the caller omitted and bound the
// ones they supplied.
type AnalysisDefaults struct {
	Location          string
	Days              int
	MaxDays           int
	LocationMinLength int
	LocationMaxLength int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	advisor          *service.AdvisorService
	dashboard        *render.Dashboard
	defaults         AnalysisDefaults
	healthConfig     *HealthConfig
	tracker          *health.Tracker
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil tracker disables degraded reporting.
func NewHandler(
	advisor *service.AdvisorService,
	dashboard *render.Dashboard,
	defaults AnalysisDefaults,
	healthConfig *HealthConfig,
	tracker *health.Tracker,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		advisor:      advisor,
		dashboard:    dashboard,
		defaults:     defaults,
		healthConfig: healthConfig,
		tracker:      tracker,
		logger:       logger,
	}
}

// requestError is a rejected query parameter.
type requestError struct {
	code    string
	message string
}

// parseQuery validates location and days, applying defaults for blanks.
func (h *Handler) parseQuery(q url.Values) (string, int, *requestError) {
	raw := q.Get("location")
	if strings.TrimSpace(raw) == "" {
		raw = h.defaults.Location
	}
	location, err := validation.ValidateLocation(raw, h.defaults.LocationMinLength, h.defaults.LocationMaxLength)
	if err != nil {
		return "", 0, &requestError{"INVALID_LOCATION", err.Error()}
	}
	days, err := validation.ParseDays(q.Get("days"), h.defaults.Days, h.defaults.MaxDays)
	if err != nil {
		return "", 0, &requestError{"INVALID_DAYS", fmt.Sprintf("days must be a whole number between 1 and %d", h.defaults.MaxDays)}
	}
	return location, days, nil
}

// analyze runs the advisor and feeds the outcome to the health tracker.
// A location the provider cannot find is the caller's mistake, not an outage.
func (h *Handler) analyze(ctx context.Context, location string, days int) (service.Report, error) {
	report, err := h.advisor.Analyze(ctx, location, days)
	if h.tracker != nil {
		if err == nil || errors.Is(err, client.ErrLocationNotFound) {
			h.tracker.RecordSuccess()
		} else {
			h.tracker.RecordFailure()
		}
	}
	return report, err
}

// GetAnalysis handles GET /api/v1/analysis.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	location, days, reqErr := h.parseQuery(r.URL.Query())
	if reqErr != nil {
		writeError(w, r, http.StatusBadRequest, reqErr.code, reqErr.message)
		return
	}
	report, err := h.analyze(r.Context(), location, days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetChart handles GET /chart.png.
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	location, days, reqErr := h.parseQuery(r.URL.Query())
	if reqErr != nil {
		writeError(w, r, http.StatusBadRequest, reqErr.code, reqErr.message)
		return
	}
	report, err := h.analyze(r.Context(), location, days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	img, err := render.RiskChart(report.Summary)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("chart render failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Unable to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

// GetDashboard handles GET /. The form is shown alone until a location is
// submitted.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := render.DashboardView{
		Location:   strings.TrimSpace(q.Get("location")),
		Days:       h.defaults.Days,
		MaxDays:    h.defaults.MaxDays,
		ShowDetail: queryBool(q, "detail"),
		ShowChart:  queryBool(q, "chart"),
	}
	if d, err := strconv.Atoi(strings.TrimSpace(q.Get("days"))); err == nil {
		view.Days = d
	}

	status := http.StatusOK
	if !q.Has("location") {
		view.Location = h.defaults.Location
	} else if location, days, reqErr := h.parseQuery(q); reqErr != nil {
		status = http.StatusBadRequest
		view.Error = reqErr.message
	} else {
		view.Location, view.Days = location, days
		report, err := h.analyze(r.Context(), location, days)
		if err != nil {
			var message string
			status, _, message = mapServiceError(err)
			view.Error = message
			observability.LoggerFromContext(r.Context()).Debug("dashboard analysis failed", zap.Error(err))
		} else {
			view.Report = &report
			if view.ShowChart {
				chart, err := render.ChartDataURL(report.Summary)
				if err != nil {
					observability.LoggerFromContext(r.Context()).Error("chart render failed", zap.Error(err))
				}
				view.ChartURL = chart
			}
		}
	}

	var buf bytes.Buffer
	if err := h.dashboard.Render(&buf, view); err != nil {
		observability.LoggerFromContext(r.Context()).Error("dashboard render failed", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func queryBool(q url.Values, key string) bool {
	v, err := strconv.ParseBool(q.Get(key))
	return err == nil && v
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":     result.status,
		"service":    "mining-weather-advisor",
		"version":    "dev",
		"checks":     checks,
		"thresholds": h.advisor.Thresholds(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if health.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.tracker != nil &&
		h.tracker.Degraded(h.healthConfig.DegradedWindow, h.healthConfig.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// mapServiceError picks the status, code and user-facing message for an
// analysis failure.
func mapServiceError(err error) (int, string, string) {
	var (
		transportErr *client.TransportError
		parseErr     *client.ParseError
		apiErr       *client.APIError
	)
	switch {
	case errors.Is(err, client.ErrLocationNotFound):
		return http.StatusNotFound, "LOCATION_NOT_FOUND", "No matching location found"
	case errors.As(err, &transportErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to reach the weather provider"
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, "UPSTREAM_MALFORMED", "Weather provider returned an unexpected response"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "UPSTREAM_ERROR", "Weather provider rejected the request"
	default:
		return http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data"
	}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}

// writeServiceError maps an analysis failure to its HTTP error response.
// The underlying error is logged at DEBUG; the service already warned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapServiceError(err)
	writeError(w, r, status, code, message)
	observability.LoggerFromContext(r.Context()).Debug("upstream error", zap.Error(err), zap.String("code", code))
}
