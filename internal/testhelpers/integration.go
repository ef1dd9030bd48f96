//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"

	"github.com/kjstillabower/mining-weather-advisor/internal/client"
	"github.com/kjstillabower/mining-weather-advisor/internal/risk"
	"github.com/kjstillabower/mining-weather-advisor/internal/service"
)

// IntegrationTestConfig holds configuration for live-provider tests.
type IntegrationTestConfig struct {
	APIKey string
	APIURL string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultAPIURL
	}
	return IntegrationTestConfig{APIKey: apiKey, APIURL: apiURL}
}

// SetupIntegrationClient creates a WeatherAPI.com client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.WeatherAPIClient {
	t.Helper()
	c, err := client.NewWeatherAPIClient(cfg.APIKey, cfg.APIURL, client.DefaultTimeout)
	if err != nil {
		t.Fatalf("NewWeatherAPIClient() error = %v", err)
	}
	return c
}

// SetupIntegrationService creates an advisor backed by the live provider with
// default thresholds.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) *service.AdvisorService {
	t.Helper()
	return service.NewAdvisorService(SetupIntegrationClient(t, cfg), risk.DefaultThresholds(), nil)
}
