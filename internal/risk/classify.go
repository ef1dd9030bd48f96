package risk

import (
	"strconv"
	"time"

	"github.com/kjstillabower/mining-weather-advisor/internal/models"
)

// NoAdditionalRisks is the sole AdditionalRisks entry when no threshold fires.
const NoAdditionalRisks = "No Additional Risks"

// FallbackRecommendation is returned for a level outside 1..5.
const FallbackRecommendation = "Further Evaluation Needed"

var recommendations = map[Level]string{
	LevelMinimal:  "✅ Normal Operations",
	LevelLow:      "⚠️ Proceed with Caution",
	LevelModerate: "🟠 Consider Partial Suspension",
	LevelHigh:     "🔴 Consider Halting Operations",
	LevelSevere:   "🛑 Cease All Operations",
}

// RecommendationFor maps a risk level to its operational recommendation.
func RecommendationFor(level Level) string {
	if rec, ok := recommendations[level]; ok {
		return rec
	}
	return FallbackRecommendation
}

// Thresholds bound the acceptable working ranges. Temperature and humidity
// ranges are inclusive; wind speed is an upper bound only.
type Thresholds struct {
	TemperatureMin float64 `json:"temperatureMin" validate:"gte=-90"`
	TemperatureMax float64 `json:"temperatureMax" validate:"gtfield=TemperatureMin,lte=70"`
	HumidityMin    float64 `json:"humidityMin" validate:"gte=0,lte=100"`
	HumidityMax    float64 `json:"humidityMax" validate:"gtfield=HumidityMin,lte=100"`
	WindSpeedMax   float64 `json:"windSpeedMax" validate:"gt=0"`
}

// DefaultThresholds returns the standard limits: 0–40 °C, 30–80 % humidity,
// wind up to 30 km/h.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureMin: 0,
		TemperatureMax: 40,
		HumidityMin:    30,
		HumidityMax:    80,
		WindSpeedMax:   30,
	}
}

// Assessment is the risk verdict for a single forecast hour.
type Assessment struct {
	Timestamp            time.Time `json:"timestamp"`
	WeatherDescription   string    `json:"weatherDescription"`
	ConditionDescription string    `json:"conditionDescription"`
	WeatherCode          int       `json:"weatherCode"`
	Temperature          float64   `json:"temperature"`
	Humidity             int       `json:"humidity"`
	WindSpeed            float64   `json:"windSpeed"`
	Level                Level     `json:"riskLevel"`
	Impact               string    `json:"impact"`
	Recommendation       string    `json:"recommendation"`
	AdditionalRisks      []string  `json:"additionalRisks"`
}

// Classify assesses one sample against the catalog and thresholds.
func Classify(sample models.HourlySample, t Thresholds) Assessment {
	info := Lookup(sample.WeatherCode)

	description := sample.ConditionText
	if description == "" {
		description = info.Description
	}

	return Assessment{
		Timestamp:            sample.Timestamp,
		WeatherDescription:   description,
		ConditionDescription: info.Description,
		WeatherCode:          sample.WeatherCode,
		Temperature:          sample.Temperature,
		Humidity:             sample.Humidity,
		WindSpeed:            sample.WindSpeed,
		Level:                info.Level,
		Impact:               info.Impact,
		Recommendation:       RecommendationFor(info.Level),
		AdditionalRisks:      thresholdViolations(sample, t),
	}
}

// ClassifyAll classifies samples, preserving their order.
func ClassifyAll(samples []models.HourlySample, t Thresholds) []Assessment {
	out := make([]Assessment, 0, len(samples))
	for _, s := range samples {
		out = append(out, Classify(s, t))
	}
	return out
}

// thresholdViolations checks temperature, humidity, then wind.
func thresholdViolations(s models.HourlySample, t Thresholds) []string {
	var risks []string
	if s.Temperature < t.TemperatureMin || s.Temperature > t.TemperatureMax {
		risks = append(risks, "Extreme Temperature: "+formatNumber(s.Temperature)+"°C")
	}
	humidity := float64(s.Humidity)
	if humidity < t.HumidityMin || humidity > t.HumidityMax {
		risks = append(risks, "Abnormal Humidity: "+strconv.Itoa(s.Humidity)+"%")
	}
	if s.WindSpeed > t.WindSpeedMax {
		risks = append(risks, "High Wind Speed: "+formatNumber(s.WindSpeed)+" km/h")
	}
	if len(risks) == 0 {
		return []string{NoAdditionalRisks}
	}
	return risks
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
