package models

import "time"

// HourlySample is one forecast hour as reported by the weather provider.
type HourlySample struct {
	Timestamp     time.Time `json:"timestamp"`
	Temperature   float64   `json:"temperature"` // °C
	Humidity      int       `json:"humidity"`    // %
	WindSpeed     float64   `json:"windSpeed"`   // km/h
	WeatherCode   int       `json:"weatherCode"`
	ConditionText string    `json:"conditionText,omitempty"`
}

// ResolvedLocation is the location the provider matched for a query.
type ResolvedLocation struct {
	Name     string `json:"name"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Forecast holds the provider's hourly samples in the order they were returned.
type Forecast struct {
	Location ResolvedLocation `json:"location"`
	Hours    []HourlySample   `json:"hours"`
}
