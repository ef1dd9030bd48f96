package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/mining-weather-advisor/internal/client"
	"github.com/kjstillabower/mining-weather-advisor/internal/risk"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string `validate:"required,numeric"`

	WeatherAPIKey     string        `validate:"required"`
	WeatherAPIURL     string        `validate:"required,url"`
	WeatherAPITimeout time.Duration `validate:"gt=0"`

	RequestTimeout time.Duration `validate:"gt=0"`

	DefaultLocation   string `validate:"required"`
	DefaultDays       int    `validate:"gte=1,ltefield=MaxDays"`
	MaxDays           int    `validate:"gte=1,lte=14"`
	LocationMinLength int    `validate:"gte=1"`
	LocationMaxLength int    `validate:"gtefield=LocationMinLength"`

	Thresholds risk.Thresholds

	RateLimitRPS   int `validate:"gt=0"`
	RateLimitBurst int `validate:"gtefield=RateLimitRPS"`

	ShutdownTimeout       time.Duration `validate:"gt=0"`
	InFlightTimeout       time.Duration `validate:"gt=0"`
	InFlightCheckInterval time.Duration `validate:"gt=0"`

	DegradedWindow   time.Duration `validate:"gt=0"`
	DegradedErrorPct int           `validate:"gte=1,lte=100"`

	TrackedLocations []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Analysis struct {
		DefaultLocation   string `yaml:"default_location"`
		DefaultDays       int    `yaml:"default_days"`
		MaxDays           int    `yaml:"max_days"`
		LocationMinLength int    `yaml:"location_min_length"`
		LocationMaxLength int    `yaml:"location_max_length"`
	} `yaml:"analysis"`

	// Pointers so an explicit 0 is distinguishable from an omitted key.
	Thresholds struct {
		TemperatureMin *float64 `yaml:"temperature_min"`
		TemperatureMax *float64 `yaml:"temperature_max"`
		HumidityMin    *float64 `yaml:"humidity_min"`
		HumidityMax    *float64 `yaml:"humidity_max"`
		WindSpeedMax   *float64 `yaml:"wind_speed_max"`
	} `yaml:"thresholds"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

var validate = validator.New()

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// API key comes from WEATHER_API_KEY env or secrets file. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := fromFile(fc)

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		key, err := readSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		cfg.WeatherAPIKey = key
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromFile applies defaults to the parsed YAML. The API key is left empty.
func fromFile(fc fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = strings.TrimSpace(fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIURL = strings.TrimSpace(fc.WeatherAPI.URL)
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = client.DefaultAPIURL
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, client.DefaultTimeout)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.DefaultLocation = strings.TrimSpace(fc.Analysis.DefaultLocation)
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = "Jakarta"
	}
	cfg.DefaultDays = intOrDefault(fc.Analysis.DefaultDays, 1)
	cfg.MaxDays = intOrDefault(fc.Analysis.MaxDays, 14)
	cfg.LocationMinLength = intOrDefault(fc.Analysis.LocationMinLength, 1)
	cfg.LocationMaxLength = intOrDefault(fc.Analysis.LocationMaxLength, 100)

	cfg.Thresholds = risk.DefaultThresholds()
	setFloat(&cfg.Thresholds.TemperatureMin, fc.Thresholds.TemperatureMin)
	setFloat(&cfg.Thresholds.TemperatureMax, fc.Thresholds.TemperatureMax)
	setFloat(&cfg.Thresholds.HumidityMin, fc.Thresholds.HumidityMin)
	setFloat(&cfg.Thresholds.HumidityMax, fc.Thresholds.HumidityMax)
	setFloat(&cfg.Thresholds.WindSpeedMax, fc.Thresholds.WindSpeedMax)

	cfg.RateLimitRPS = intOrDefault(fc.Reliability.RateLimitRPS, 20)
	cfg.RateLimitBurst = intOrDefault(fc.Reliability.RateLimitBurst, 40)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 20*time.Second)
	cfg.InFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 5*time.Minute)
	cfg.DegradedErrorPct = intOrDefault(fc.Health.DegradedErrorPct, 50)

	cfg.TrackedLocations = fc.Metrics.TrackedLocations
	return cfg
}

func readSecrets(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

// Validate checks field constraints. RequestTimeout is raised above
// WeatherAPITimeout so a slow provider surfaces as an upstream error.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: invalid %s (%s=%s): got %v", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.RequestTimeout <= c.WeatherAPITimeout {
		c.RequestTimeout = c.WeatherAPITimeout + time.Second
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func intOrDefault(v, defaultVal int) int {
	if v <= 0 {
		return defaultVal
	}
	return v
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is so validation can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
