package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"html"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/mining-weather-advisor/internal/client"
	"github.com/kjstillabower/mining-weather-advisor/internal/health"
	"github.com/kjstillabower/mining-weather-advisor/internal/models"
	"github.com/kjstillabower/mining-weather-advisor/internal/render"
	"github.com/kjstillabower/mining-weather-advisor/internal/risk"
	"github.com/kjstillabower/mining-weather-advisor/internal/service"
)

type mockForecastClient struct {
	forecast models.Forecast
	err      error
	block    chan struct{} // if set, GetForecast blocks until ctx.Done() or close

	calls        int
	lastLocation string
	lastDays     int
}

func (m *mockForecastClient) GetForecast(ctx context.Context, location string, days int) (models.Forecast, error) {
	m.calls++
	m.lastLocation = location
	m.lastDays = days
	if m.block != nil {
		select {
		case <-ctx.Done():
			return models.Forecast{}, &client.TransportError{Err: ctx.Err()}
		case <-m.block:
		}
	}
	return m.forecast, m.err
}

func testForecast() models.Forecast {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return models.Forecast{
		Location: models.ResolvedLocation{Name: "Jakarta", Region: "Jakarta Raya", Country: "Indonesia", TimeZone: "UTC"},
		Hours: []models.HourlySample{
			{Timestamp: ts, Temperature: 25, Humidity: 50, WindSpeed: 10, WeatherCode: 1000, ConditionText: "Sunny"},
			{Timestamp: ts.Add(time.Hour), Temperature: 27, Humidity: 60, WindSpeed: 12, WeatherCode: 1006, ConditionText: "Cloudy"},
			{Timestamp: ts.Add(2 * time.Hour), Temperature: 45, Humidity: 85, WindSpeed: 35, WeatherCode: 1276, ConditionText: "Moderate or heavy rain with thunder"},
		},
	}
}

var testDefaults = AnalysisDefaults{
	Location:          "Jakarta",
	Days:              1,
	MaxDays:           14,
	LocationMinLength: 1,
	LocationMaxLength: 100,
}

type testEnv struct {
	client  *mockForecastClient
	tracker *health.Tracker
	handler *Handler
	router  http.Handler
}

func newTestEnv(t *testing.T, mc *mockForecastClient, logger *zap.Logger, rc RouterConfig) *testEnv {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	dashboard, err := render.NewDashboard()
	if err != nil {
		t.Fatalf("NewDashboard: %v", err)
	}
	advisor := service.NewAdvisorService(mc, risk.DefaultThresholds(), clockwork.NewFakeClock())
	tracker := health.NewTracker(clockwork.NewFakeClock(), time.Minute)
	healthConfig := &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}
	h := NewHandler(advisor, dashboard, testDefaults, healthConfig, tracker, logger)
	return &testEnv{
		client:  mc,
		tracker: tracker,
		handler: h,
		router:  NewRouter(h, logger, rc),
	}
}

func (e *testEnv) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHandler_GetAnalysis_Success(t *testing.T) {
	env := newTestEnv(t, &mockForecastClient{forecast: testForecast()}, nil, RouterConfig{})

	w := env.do("GET", "/api/v1/analysis?location=Jakarta&days=2")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var report service.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Location != "Jakarta" || report.Days != 2 {
		t.Errorf("report = (%q, %d), want (Jakarta, 2)", report.Location, report.Days)
	}
	if report.Summary.TotalHours != 3 {
		t.Errorf("TotalHours = %d, want 3", report.Summary.TotalHours)
	}
	if report.Summary.MaxLevel != risk.LevelSevere {
		t.Errorf("MaxLevel = %d, want 5", report.Summary.MaxLevel)
	}
	if len(report.Assessments) != 3 {
		t.Fatalf("assessments = %d, want 3", len(report.Assessments))
	}
	if got := report.Assessments[2].AdditionalRisks; len(got) != 3 {
		t.Errorf("AdditionalRisks = %v, want 3 entries", got)
	}
	if env.client.lastDays != 2 {
		t.Errorf("client days = %d, want 2", env.client.lastDays)
	}
}

func TestHandler_GetAnalysis_AppliesDefaults(t *testing.T) {
	env := newTestEnv(t, &mockForecastClient{forecast: testForecast()}, nil, RouterConfig{})

	w := env.do("GET", "/api/v1/analysis")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if env.client.lastLocation != "Jakarta" || env.client.lastDays != 1 {
		t.Errorf("client called with (%q, %d), want (Jakarta, 1)", env.client.lastLocation, env.client.lastDays)
	}
}

func TestHandler_GetAnalysis_InvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"bad characters", "location=Jakarta%3Bdrop", "INVALID_LOCATION"},
		{"too long", "location=" + strings.Repeat("a", 101), "INVALID_LOCATION"},
		{"days not a number", "days=abc", "INVALID_DAYS"},
		{"days zero", "days=0", "INVALID_DAYS"},
		{"days above max", "days=15", "INVALID_DAYS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &mockForecastClient{forecast: testForecast()}, nil, RouterConfig{})

			w := env.do("GET", "/api/v1/analysis?"+tt.query)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			body := decodeError(t, w)
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
			if body.Error.RequestID == "" {
				t.Error("requestId empty, want correlation ID")
			}
			if env.client.calls != 0 {
				t.Errorf("client calls = %d, want 0 for rejected input", env.client.calls)
			}
		})
	}
}

func TestHandler_GetAnalysis_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"location not found", &client.APIError{StatusCode: 400, ProviderCode: 1006, Message: "No matching location found."}, http.StatusNotFound, "LOCATION_NOT_FOUND"},
		{"invalid key", &client.APIError{StatusCode: 401, ProviderCode: 2006, Message: "API key is invalid."}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"quota", &client.APIError{StatusCode: 403, ProviderCode: 2007, Message: "quota exceeded"}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"server error", &client.APIError{StatusCode: 500}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"malformed", &client.ParseError{Err: errors.New("unexpected end of JSON input")}, http.StatusBadGateway, "UPSTREAM_MALFORMED"},
		{"transport", &client.TransportError{Err: errors.New("connection refused")}, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &mockForecastClient{err: tt.err}, nil, RouterConfig{})

			w := env.do("GET", "/api/v1/analysis?location=Nowhere")

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeError(t, w); body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestHandler_Analyze_FeedsHealthTracker(t *testing.T) {
	mc := &mockForecastClient{err: &client.APIError{StatusCode: 400, ProviderCode: 1006}}
	env := newTestEnv(t, mc, nil, RouterConfig{})

	env.do("GET", "/api/v1/analysis?location=Atlantis")
	if failures, total := env.tracker.FailureRate(time.Minute); failures != 0 || total != 1 {
		t.Errorf("after not-found: FailureRate = (%d, %d), want (0, 1)", failures, total)
	}

	mc.err = &client.TransportError{Err: errors.New("dial tcp: refused")}
	env.do("GET", "/api/v1/analysis?location=Jakarta")
	if failures, total := env.tracker.FailureRate(time.Minute); failures != 1 || total != 2 {
		t.Errorf("after transport error: FailureRate = (%d, %d), want (1, 2)", failures, total)
	}
}

func TestHandler_GetChart(t *testing.T) {
	env := newTestEnv(t, &mockForecastClient{forecast: testForecast()}, nil, RouterConfig{})

	w := env.do("GET", "/chart.png?location=Jakarta&days=1")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if _, err := png.Decode(bytes.NewReader(w.Body.Bytes())); err != nil {
		t.Errorf("body is not a PNG: %v", err)
	}
}

func TestHandler_GetChart_UpstreamError(t *testing.T) {
	env := newTestEnv(t, &mockForecastClient{err: &client.ParseError{Err: errors.New("bad")}}, nil, RouterConfig{})

	w := env.do("GET", "/chart.png?location=Jakarta")

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestHandler_GetDashboard_FormOnly(t *testing.T) {
	env := newTestEnv(t, &mockForecastClient{forecast: testForecast()}, nil, RouterConfig{})

	w := env.do("GET", "/")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, `value="Jakarta"`) {
		t.Error("form not pre-filled with default location")
	}
	if env.client.calls != 0 {
		t.Errorf("client calls = %d, want 0 before the form is submitted", env.client.calls)
	}
}

func TestHandler_GetDashboard_WithReport(t *testing.T) {
	env := newTestEnv(t, &mockForecastClient{forecast: testForecast()}, nil, RouterConfig{})

	w := env.do("GET", "/?location=Jakarta&days=1&detail=true&chart=true")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Total Hours Analyzed: 3",
		"🛑 Cease All Operations: 1 hours",
		`<img src="data:image/png;base64,`,
		"<table>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if strings.Contains(body, "/chart.png") {
		t.Error("dashboard links /chart.png, want the chart inlined")
	}
	if env.client.calls != 1 {
		t.Errorf("client calls = %d, want 1", env.client.calls)
	}
}

func TestHandler_GetDashboard_ChartUsesSameForecast(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	env := newTestEnv(t, &mockForecastClient{forecast: testForecast()}, nil, RouterConfig{Limiter: limiter})

	w := env.do("GET", "/?location=Jakarta&days=1&chart=true")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := html.UnescapeString(w.Body.String())
	const prefix = `<img src="data:image/png;base64,`
	start := strings.Index(body, prefix)
	if start < 0 {
		t.Fatal("dashboard has no inline chart")
	}
	encoded := body[start+len(prefix):]
	encoded = encoded[:strings.IndexByte(encoded, '"')]
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode chart: %v", err)
	}
	want, err := render.RiskChart(risk.Summarize(risk.ClassifyAll(testForecast().Hours, risk.DefaultThresholds())))
	if err != nil {
		t.Fatalf("RiskChart: %v", err)
	}
	if !bytes.Equal(img, want) {
		t.Error("inline chart differs from the chart of the rendered summary")
	}
	if _, total := env.tracker.FailureRate(time.Minute); total != 1 {
		t.Errorf("tracker outcomes = %d, want 1", total)
	}
}

func TestHandler_GetDashboard_NoChartUnlessRequested(t *testing.T) {
	env := newTestEnv(t, &mockForecastClient{forecast: testForecast()}, nil, RouterConfig{})

	w := env.do("GET", "/?location=Jakarta&days=1")

	if strings.Contains(w.Body.String(), "<img") {
		t.Error("dashboard shows a chart without chart=true")
	}
}

func TestHandler_GetDashboard_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
		wantText   string
	}{
		{"invalid days", "/?location=Jakarta&days=99", nil, http.StatusBadRequest, "days must be a whole number between 1 and 14"},
		{"not found", "/?location=Atlantis", &client.APIError{StatusCode: 400, ProviderCode: 1006}, http.StatusNotFound, "No matching location found"},
		{"unavailable", "/?location=Jakarta", &client.TransportError{Err: errors.New("refused")}, http.StatusServiceUnavailable, "Unable to reach the weather provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &mockForecastClient{forecast: testForecast(), err: tt.err}, nil, RouterConfig{})

			w := env.do("GET", tt.path)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := w.Body.String()
			if !strings.Contains(body, tt.wantText) {
				t.Errorf("dashboard missing error %q", tt.wantText)
			}
			if strings.Contains(body, "Total Hours Analyzed") {
				t.Error("dashboard shows a summary alongside an error")
			}
		})
	}
}

func TestHandler_GetHealth(t *testing.T) {
	health.SetShuttingDown(false)
	env := newTestEnv(t, &mockForecastClient{}, nil, RouterConfig{})

	w := env.do("GET", "/health")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
	if resp["service"] != "mining-weather-advisor" {
		t.Errorf("service = %v, want mining-weather-advisor", resp["service"])
	}
	th, ok := resp["thresholds"].(map[string]interface{})
	if !ok {
		t.Fatalf("thresholds = %v, want object", resp["thresholds"])
	}
	if th["temperatureMax"] != 40.0 || th["windSpeedMax"] != 30.0 {
		t.Errorf("thresholds = %v, want active defaults", th)
	}
}

func TestHandler_GetHealth_ShuttingDown(t *testing.T) {
	health.SetShuttingDown(true)
	defer health.SetShuttingDown(false)
	env := newTestEnv(t, &mockForecastClient{}, nil, RouterConfig{})

	w := env.do("GET", "/health")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"shutting-down"`) {
		t.Errorf("body = %s, want shutting-down status", w.Body.String())
	}
}

func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	health.SetShuttingDown(false)
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	env := newTestEnv(t, &mockForecastClient{}, nil, RouterConfig{})
	env.handler.logger = logger

	env.tracker.RecordSuccess()
	env.tracker.RecordSuccess()
	w := httptest.NewRecorder()
	env.handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first GetHealth status = %d, want 200", w.Code)
	}
	if logs.Len() != 0 {
		t.Fatalf("first call should not log transition; got %d logs", logs.Len())
	}

	env.tracker.RecordFailure()
	env.tracker.RecordFailure()
	w2 := httptest.NewRecorder()
	env.handler.GetHealth(w2, httptest.NewRequest("GET", "/health", nil))
	if w2.Code != http.StatusServiceUnavailable {
		t.Fatalf("second GetHealth status = %d, want 503", w2.Code)
	}

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 transition log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "degraded" || fields["reason"] != "error_rate_breach" {
		t.Errorf("transition fields = %v", fields)
	}

	w3 := httptest.NewRecorder()
	env.handler.GetHealth(w3, httptest.NewRequest("GET", "/health", nil))
	if logs.Len() != 1 {
		t.Errorf("unchanged status should not log; total logs = %d, want 1", logs.Len())
	}
}

func TestHandler_GetHealth_DegradedAfterUpstreamFailures(t *testing.T) {
	health.SetShuttingDown(false)
	env := newTestEnv(t, &mockForecastClient{err: &client.APIError{StatusCode: 500}}, nil, RouterConfig{})

	env.do("GET", "/api/v1/analysis?location=Jakarta")
	env.do("GET", "/api/v1/analysis?location=Jakarta")

	w := env.do("GET", "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"degraded"`) {
		t.Errorf("body = %s, want degraded status", w.Body.String())
	}
}

func TestMapServiceError_WrappedErrors(t *testing.T) {
	err := errors.Join(errors.New("analyze Jakarta"), &client.APIError{StatusCode: 400, ProviderCode: 1006})
	status, code, _ := mapServiceError(err)
	if status != http.StatusNotFound || code != "LOCATION_NOT_FOUND" {
		t.Errorf("mapServiceError = (%d, %q), want (404, LOCATION_NOT_FOUND)", status, code)
	}
	status, code, _ = mapServiceError(errors.New("something else"))
	if status != http.StatusServiceUnavailable || code != "UPSTREAM_UNAVAILABLE" {
		t.Errorf("mapServiceError(unknown) = (%d, %q), want (503, UPSTREAM_UNAVAILABLE)", status, code)
	}
}
