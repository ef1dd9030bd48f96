package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kjstillabower/mining-weather-advisor/internal/risk"
	"github.com/kjstillabower/mining-weather-advisor/internal/service"
)

// TimestampLayout matches the provider's local hour format.
const TimestampLayout = "2006-01-02 15:04"

// WriteSummary prints totals, the recommendation distribution and the
// maximum risk level.
func WriteSummary(w io.Writer, r service.Report) error {
	ew := &errWriter{w: w}
	ew.printf("--- Weather Analysis Summary ---\n")
	ew.printf("Location: %s\n", LocationLabel(r))
	ew.printf("Days Analyzed: %d\n", r.Days)
	ew.printf("Total Hours Analyzed: %d\n", r.Summary.TotalHours)
	ew.printf("--- Recommendation Distribution ---\n")
	for _, rc := range r.Summary.Recommendations {
		ew.printf("%s: %d hours\n", rc.Recommendation, rc.Hours)
	}
	ew.printf("--- Maximum Risk Level: %d ---\n", r.Summary.MaxLevel)
	return ew.err
}

// WriteDetail prints one block per assessed hour.
func WriteDetail(w io.Writer, r service.Report) error {
	ew := &errWriter{w: w}
	for _, a := range r.Assessments {
		ew.printf("🕒 Timestamp: %s\n", a.Timestamp.Format(TimestampLayout))
		ew.printf("☁️ Weather: %s\n", a.WeatherDescription)
		ew.printf("🌡️ Temperature: %s°C\n", FormatNumber(a.Temperature))
		ew.printf("💧 Humidity: %d%%\n", a.Humidity)
		ew.printf("💨 Wind Speed: %s km/h\n", FormatNumber(a.WindSpeed))
		ew.printf("⚠️ Risk Level: %d\n", a.Level)
		ew.printf("⛏️ Mining Impact: %s\n", a.Impact)
		ew.printf("📋 Recommendation: %s\n", a.Recommendation)
		ew.printf("🚨 Additional Risks: %s\n", JoinRisks(a.AdditionalRisks))
		ew.printf("---\n")
	}
	return ew.err
}

// WriteCatalog prints the condition catalog, one code per line.
func WriteCatalog(w io.Writer) error {
	ew := &errWriter{w: w}
	for _, code := range risk.Codes() {
		info := risk.Lookup(code)
		ew.printf("%d\t%d\t%-36s %s\n", code, info.Level, info.Description, info.Impact)
	}
	return ew.err
}

// LocationLabel is the requested location, followed by the provider's match
// when the two differ.
func LocationLabel(r service.Report) string {
	name := r.Resolved.Name
	if name == "" || strings.EqualFold(name, r.Location) {
		return r.Location
	}
	parts := []string{name}
	if r.Resolved.Region != "" {
		parts = append(parts, r.Resolved.Region)
	}
	if r.Resolved.Country != "" {
		parts = append(parts, r.Resolved.Country)
	}
	return fmt.Sprintf("%s (%s)", r.Location, strings.Join(parts, ", "))
}

// JoinRisks renders additional risks as a single comma-separated line.
func JoinRisks(risks []string) string {
	if len(risks) == 0 {
		return risk.NoAdditionalRisks
	}
	return strings.Join(risks, ", ")
}

// FormatNumber prints v in its shortest form (45, 12.5).
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// errWriter keeps the first write error so callers check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
