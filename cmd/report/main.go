// Command report prints a mining weather risk report for one location.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kjstillabower/mining-weather-advisor/internal/client"
	"github.com/kjstillabower/mining-weather-advisor/internal/observability"
	"github.com/kjstillabower/mining-weather-advisor/internal/render"
	"github.com/kjstillabower/mining-weather-advisor/internal/risk"
	"github.com/kjstillabower/mining-weather-advisor/internal/service"
	"github.com/kjstillabower/mining-weather-advisor/internal/validation"
)

// Globals are bound into every command's Run method.
type Globals struct {
	Ctx    context.Context
	Stdout io.Writer
	Logger *zap.Logger
}

// CLI is the command tree.
type CLI struct {
	Report ReportCmd `cmd:"" default:"withargs" help:"Analyze the hourly forecast for a location (default)."`
	Codes  CodesCmd  `cmd:"" help:"List the weather condition catalog."`
}

// ReportCmd fetches, classifies and prints a report.
type ReportCmd struct {
	Location string        `short:"l" default:"${default_location}" help:"City name or lat,lon."`
	Days     int           `short:"d" default:"1" help:"Forecast days to analyze."`
	MaxDays  int           `default:"14" help:"Largest accepted --days value."`
	Detail   bool          `help:"Print every assessed hour."`
	Chart    string        `type:"path" placeholder:"FILE.png" help:"Write the risk level chart to this file."`
	APIKey   string        `name:"api-key" env:"WEATHER_API_KEY" required:"" help:"WeatherAPI.com key."`
	APIURL   string        `name:"api-url" default:"${default_api_url}" help:"Forecast endpoint."`
	Timeout  time.Duration `default:"${default_timeout}" help:"Forecast request timeout."`

	TemperatureMin float64 `name:"temp-min" default:"0" help:"Lowest safe temperature (°C)."`
	TemperatureMax float64 `name:"temp-max" default:"40" help:"Highest safe temperature (°C)."`
	HumidityMin    float64 `name:"humidity-min" default:"30" help:"Lowest safe humidity (%)."`
	HumidityMax    float64 `name:"humidity-max" default:"80" help:"Highest safe humidity (%)."`
	WindSpeedMax   float64 `name:"wind-max" default:"30" help:"Highest safe wind speed (km/h)."`
}

var validate = validator.New()

// Run executes the report command.
func (c *ReportCmd) Run(g *Globals) error {
	location, err := validation.ValidateLocation(c.Location, 1, 100)
	if err != nil {
		return fmt.Errorf("--location: %w", err)
	}
	days, err := validation.ValidateDays(c.Days, c.MaxDays)
	if err != nil {
		return fmt.Errorf("--days must be between 1 and %d: %w", c.MaxDays, err)
	}
	thresholds := risk.Thresholds{
		TemperatureMin: c.TemperatureMin,
		TemperatureMax: c.TemperatureMax,
		HumidityMin:    c.HumidityMin,
		HumidityMax:    c.HumidityMax,
		WindSpeedMax:   c.WindSpeedMax,
	}
	if err := validate.Struct(thresholds); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	fc, err := client.NewWeatherAPIClient(c.APIKey, c.APIURL, c.Timeout)
	if err != nil {
		return err
	}
	advisor := service.NewAdvisorService(fc, thresholds, nil)

	ctx := observability.WithLogger(g.Ctx, g.Logger)
	report, err := advisor.Analyze(ctx, location, days)
	if err != nil {
		return describeError(location, err)
	}

	if err := render.WriteSummary(g.Stdout, report); err != nil {
		return err
	}
	if c.Detail {
		if _, err := fmt.Fprintln(g.Stdout, "\n--- Detailed Analysis ---"); err != nil {
			return err
		}
		if err := render.WriteDetail(g.Stdout, report); err != nil {
			return err
		}
	}
	if c.Chart != "" {
		img, err := render.RiskChart(report.Summary)
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.Chart, img, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		if _, err := fmt.Fprintf(g.Stdout, "Chart written to %s\n", c.Chart); err != nil {
			return err
		}
	}
	return nil
}

// CodesCmd prints the condition catalog.
type CodesCmd struct{}

// Run executes the codes command.
func (c *CodesCmd) Run(g *Globals) error {
	return render.WriteCatalog(g.Stdout)
}

// describeError turns provider failures into a one-line message.
func describeError(location string, err error) error {
	var parseErr *client.ParseError
	switch {
	case errors.Is(err, client.ErrLocationNotFound):
		return fmt.Errorf("location %q not found by the weather provider", location)
	case errors.Is(err, client.ErrInvalidAPIKey):
		return fmt.Errorf("weather provider rejected the API key: %w", err)
	case errors.Is(err, client.ErrQuotaExceeded):
		return fmt.Errorf("weather provider quota exceeded: %w", err)
	case errors.As(err, &parseErr):
		return fmt.Errorf("unexpected forecast response: %w", err)
	case client.CategorizeError(err) == client.ErrorCategoryTimeout,
		client.CategorizeError(err) == client.ErrorCategoryTransport:
		return fmt.Errorf("weather provider unreachable: %w", err)
	default:
		return fmt.Errorf("error fetching data: %w", err)
	}
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("mining-weather-report"),
		kong.Description("Classify hourly forecast weather into mining operation risk levels."),
		kong.UsageOnError(),
		kong.Vars{
			"default_location": "Jakarta",
			"default_api_url":  client.DefaultAPIURL,
			"default_timeout":  client.DefaultTimeout.String(),
		},
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = observability.FlushTelemetry(logger) }()

	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		logger.Fatal("cli", zap.Error(err))
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = kctx.Run(&Globals{Ctx: ctx, Stdout: os.Stdout, Logger: logger})
	kctx.FatalIfErrorf(err)
}
