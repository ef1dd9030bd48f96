package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/mining-weather-advisor/internal/models"
	"github.com/kjstillabower/mining-weather-advisor/internal/observability"
)

// DefaultAPIURL is the WeatherAPI.com forecast endpoint.
const DefaultAPIURL = "https://api.weatherapi.com/v1/forecast.json"

// DefaultTimeout bounds a forecast call when none is configured.
const DefaultTimeout = 10 * time.Second

// hourLayout is the provider's local-time format for forecast hours.
const hourLayout = "2006-01-02 15:04"

// maxBodyBytes caps the response read; a 14-day forecast is well under 1 MiB.
const maxBodyBytes = 8 << 20

type ForecastClient interface {
	GetForecast(ctx context.Context, location string, days int) (models.Forecast, error)
}

// WeatherAPIClient fetches hourly forecasts from WeatherAPI.com.
// Each call is a single attempt bounded by timeout.
type WeatherAPIClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

func NewWeatherAPIClient(apiKey, apiURL string, timeout time.Duration) (*WeatherAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	return &WeatherAPIClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type forecastResponse struct {
	Location struct {
		Name    string `json:"name"`
		Region  string `json:"region"`
		Country string `json:"country"`
		TzID    string `json:"tz_id"`
	} `json:"location"`
	Forecast *struct {
		ForecastDay []struct {
			Hour []forecastHour `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

// forecastHour fields are pointers so absent keys are told apart from zeros.
type forecastHour struct {
	Time      string   `json:"time"`
	TempC     *float64 `json:"temp_c"`
	Humidity  *int     `json:"humidity"`
	WindKph   *float64 `json:"wind_kph"`
	Condition *struct {
		Text string `json:"text"`
		Code *int   `json:"code"`
	} `json:"condition"`
}

// missingField names the first required hour field absent from h.
func (h forecastHour) missingField() string {
	switch {
	case h.TempC == nil:
		return "temp_c"
	case h.Humidity == nil:
		return "humidity"
	case h.WindKph == nil:
		return "wind_kph"
	case h.Condition == nil:
		return "condition"
	case h.Condition.Code == nil:
		return "condition.code"
	}
	return ""
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GetForecast returns the hourly samples for location over days days.
// Failures are *TransportError, *APIError or *ParseError.
func (c *WeatherAPIClient) GetForecast(ctx context.Context, location string, days int) (models.Forecast, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location, days)
	if err != nil {
		observability.ForecastAPICallsTotal.WithLabelValues("error").Inc()
		return models.Forecast{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.ForecastAPICallsTotal.WithLabelValues("error").Inc()
		observability.ForecastAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return models.Forecast{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.ForecastAPICallsTotal.WithLabelValues(status).Inc()
	observability.ForecastAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.Forecast{}, &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return models.Forecast{}, newAPIError(resp.StatusCode, body)
	}

	return parseForecast(body)
}

func (c *WeatherAPIClient) buildRequest(ctx context.Context, location string, days int) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := baseURL.Query()
	params.Set("key", c.apiKey)
	params.Set("q", location)
	params.Set("days", fmt.Sprint(days))
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// newAPIError builds an APIError, reading the provider error object when present.
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		apiErr.ProviderCode = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}

func parseForecast(body []byte) (models.Forecast, error) {
	var apiResp forecastResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Forecast{}, &ParseError{Err: err}
	}
	if apiResp.Forecast == nil {
		return models.Forecast{}, &ParseError{Err: errors.New("missing forecast object")}
	}
	if apiResp.Forecast.ForecastDay == nil {
		return models.Forecast{}, &ParseError{Err: errors.New("missing forecast.forecastday")}
	}

	loc := time.UTC
	if apiResp.Location.TzID != "" {
		if tz, err := time.LoadLocation(apiResp.Location.TzID); err == nil {
			loc = tz
		}
	}

	out := models.Forecast{
		Location: models.ResolvedLocation{
			Name:     apiResp.Location.Name,
			Region:   apiResp.Location.Region,
			Country:  apiResp.Location.Country,
			TimeZone: apiResp.Location.TzID,
		},
	}
	for i, day := range apiResp.Forecast.ForecastDay {
		if day.Hour == nil {
			return models.Forecast{}, &ParseError{Err: fmt.Errorf("forecastday[%d]: missing hour", i)}
		}
		for _, h := range day.Hour {
			if field := h.missingField(); field != "" {
				return models.Forecast{}, &ParseError{Err: fmt.Errorf("hour %q: missing %s", h.Time, field)}
			}
			ts, err := time.ParseInLocation(hourLayout, h.Time, loc)
			if err != nil {
				return models.Forecast{}, &ParseError{Err: fmt.Errorf("hour time %q: %w", h.Time, err)}
			}
			out.Hours = append(out.Hours, models.HourlySample{
				Timestamp:     ts,
				Temperature:   *h.TempC,
				Humidity:      *h.Humidity,
				WindSpeed:     *h.WindKph,
				WeatherCode:   *h.Condition.Code,
				ConditionText: h.Condition.Text,
			})
		}
	}
	return out, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
