package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kjstillabower/mining-weather-advisor/internal/config"
	"github.com/kjstillabower/mining-weather-advisor/internal/health"
	"github.com/kjstillabower/mining-weather-advisor/internal/service"
)

const forecastBody = `{
  "location": {"name": "Jakarta", "region": "Jakarta Raya", "country": "Indonesia", "tz_id": "Asia/Jakarta"},
  "forecast": {"forecastday": [
    {"date": "2024-12-09", "hour": [
      {"time": "2024-12-09 00:00", "temp_c": 26.4, "humidity": 84, "wind_kph": 7.2, "condition": {"text": "Patchy rain nearby", "code": 1063}},
      {"time": "2024-12-09 01:00", "temp_c": 27.0, "humidity": 79, "wind_kph": 12.6, "condition": {"text": "Sunny", "code": 1000}}
    ]}
  ]}
}`

// loadDevConfig loads config/dev.yaml from the project root with a test key
// and points the forecast client at providerURL.
func loadDevConfig(t *testing.T, providerURL string) *config.Config {
	t.Helper()
	testChdir(t, filepath.Join("..", ".."))
	t.Setenv("ENV_NAME", "dev")
	t.Setenv("WEATHER_API_KEY", "test-key")

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.WeatherAPIURL = providerURL
	return cfg
}

func TestNewServer_ServesRoutes(t *testing.T) {
	health.SetShuttingDown(false)
	var providerCalls int
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastBody))
	}))
	t.Cleanup(provider.Close)

	cfg := loadDevConfig(t, provider.URL)
	srv, err := newServer(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ":"+cfg.ServerPort, srv.Addr)
	assert.Greater(t, srv.WriteTimeout, cfg.RequestTimeout)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	t.Run("health", func(t *testing.T) {
		w := get("/health")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"healthy"`)
	})

	t.Run("analysis", func(t *testing.T) {
		before := providerCalls
		w := get("/api/v1/analysis?location=Jakarta&days=1")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var report service.Report
		require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
		assert.Equal(t, 2, report.Summary.TotalHours)
		assert.Equal(t, cfg.Thresholds, report.Thresholds)
		assert.Equal(t, before+1, providerCalls)
	})

	t.Run("dashboard with chart", func(t *testing.T) {
		before := providerCalls
		w := get("/?location=Jakarta&days=1&chart=true")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "data:image/png;base64,")
		assert.Equal(t, before+1, providerCalls)
	})

	t.Run("chart", func(t *testing.T) {
		w := get("/chart.png?location=Jakarta")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	})

	t.Run("metrics", func(t *testing.T) {
		w := get("/metrics")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "forecastApiCallsTotal")
	})

	t.Run("invalid days", func(t *testing.T) {
		w := get("/api/v1/analysis?days=99")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestNewServer_UnreachableProvider(t *testing.T) {
	health.SetShuttingDown(false)
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	providerURL := provider.URL
	provider.Close()

	cfg := loadDevConfig(t, providerURL)
	srv, err := newServer(cfg, zap.NewNop())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analysis?location=Jakarta", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "UPSTREAM_UNAVAILABLE")
}
