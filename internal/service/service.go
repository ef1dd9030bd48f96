package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/mining-weather-advisor/internal/client"
	"github.com/kjstillabower/mining-weather-advisor/internal/models"
	"github.com/kjstillabower/mining-weather-advisor/internal/observability"
	"github.com/kjstillabower/mining-weather-advisor/internal/risk"
)

// Report is the outcome of one analysis run.
type Report struct {
	Location    string                  `json:"location"`
	Resolved    models.ResolvedLocation `json:"resolvedLocation"`
	Days        int                     `json:"days"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Thresholds  risk.Thresholds         `json:"thresholds"`
	Summary     risk.Summary            `json:"summary"`
	Assessments []risk.Assessment       `json:"assessments"`
}

// AdvisorService fetches a forecast and classifies every hour of it.
// It holds no mutable state; concurrent calls are independent.
type AdvisorService struct {
	client     client.ForecastClient
	thresholds risk.Thresholds
	clock      clockwork.Clock
}

// NewAdvisorService creates an AdvisorService. A nil clock uses wall time.
func NewAdvisorService(client client.ForecastClient, thresholds risk.Thresholds, clock clockwork.Clock) *AdvisorService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AdvisorService{
		client:     client,
		thresholds: thresholds,
		clock:      clock,
	}
}

// Thresholds returns the limits applied by Analyze.
func (s *AdvisorService) Thresholds() risk.Thresholds {
	return s.thresholds
}

// Analyze fetches days of hourly forecast for location, classifies each hour
// and summarizes the run. Provider errors are wrapped, keeping their type.
func (s *AdvisorService) Analyze(ctx context.Context, location string, days int) (Report, error) {
	location = strings.TrimSpace(location)
	start := s.clock.Now()
	logger := observability.LoggerFromContext(ctx)

	forecast, err := s.client.GetForecast(ctx, location, days)
	if err != nil {
		category := client.CategorizeError(err)
		observability.ForecastAPIErrorsTotal.WithLabelValues(string(category)).Inc()
		logger.Warn("forecast fetch failed",
			zap.String("location", location),
			zap.Int("days", days),
			zap.String("category", string(category)),
			zap.Error(err))
		return Report{}, fmt.Errorf("analyze %s: %w", location, err)
	}

	assessments := risk.ClassifyAll(forecast.Hours, s.thresholds)
	summary := risk.Summarize(assessments)

	levels := make([]int, len(assessments))
	for i, a := range assessments {
		levels[i] = int(a.Level)
	}
	observability.RecordAnalysis(location, levels)

	logger.Debug("analysis complete",
		zap.String("location", location),
		zap.String("resolved", forecast.Location.Name),
		zap.Int("hours", summary.TotalHours),
		zap.Int("max_risk_level", int(summary.MaxLevel)),
		zap.Duration("duration", s.clock.Since(start)))

	return Report{
		Location:    location,
		Resolved:    forecast.Location,
		Days:        days,
		GeneratedAt: s.clock.Now(),
		Thresholds:  s.thresholds,
		Summary:     summary,
		Assessments: assessments,
	}, nil
}
