package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/mining-weather-advisor/internal/observability"
)

// RouterConfig holds the per-route limits applied to analysis routes.
type RouterConfig struct {
	RequestTimeout time.Duration
	Limiter        *rate.Limiter // nil disables rate limiting
}

// NewRouter wires routes and middleware. Health and metrics bypass the rate
// limit and request timeout.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	analysis := router.NewRoute().Subrouter()
	analysis.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		analysis.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	analysis.HandleFunc("/", h.GetDashboard).Methods(http.MethodGet)
	analysis.HandleFunc("/api/v1/analysis", h.GetAnalysis).Methods(http.MethodGet)
	analysis.HandleFunc("/chart.png", h.GetChart).Methods(http.MethodGet)
	return router
}
