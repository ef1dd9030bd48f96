package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/mining-weather-advisor/internal/client"
	"github.com/kjstillabower/mining-weather-advisor/internal/config"
	"github.com/kjstillabower/mining-weather-advisor/internal/health"
	httphandler "github.com/kjstillabower/mining-weather-advisor/internal/http"
	"github.com/kjstillabower/mining-weather-advisor/internal/observability"
	"github.com/kjstillabower/mining-weather-advisor/internal/render"
	"github.com/kjstillabower/mining-weather-advisor/internal/service"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	srv, err := newServer(cfg, logger)
	if err != nil {
		logger.Fatal("server setup", zap.Error(err))
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("default_location", cfg.DefaultLocation),
			zap.Int("max_days", cfg.MaxDays))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	health.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.InFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newServer wires the forecast client, advisor, dashboard and router from cfg.
func newServer(cfg *config.Config, logger *zap.Logger) (*http.Server, error) {
	forecastClient, err := client.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		return nil, fmt.Errorf("forecast client: %w", err)
	}
	advisor := service.NewAdvisorService(forecastClient, cfg.Thresholds, nil)

	dashboard, err := render.NewDashboard()
	if err != nil {
		return nil, err
	}

	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	handler := httphandler.NewHandler(
		advisor,
		dashboard,
		httphandler.AnalysisDefaults{
			Location:          cfg.DefaultLocation,
			Days:              cfg.DefaultDays,
			MaxDays:           cfg.MaxDays,
			LocationMinLength: cfg.LocationMinLength,
			LocationMaxLength: cfg.LocationMaxLength,
		},
		&httphandler.HealthConfig{
			DegradedWindow:   cfg.DegradedWindow,
			DegradedErrorPct: cfg.DegradedErrorPct,
		},
		health.NewTracker(nil, cfg.DegradedWindow),
		logger,
	)

	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	})

	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}, nil
}
