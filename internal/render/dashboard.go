package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/kjstillabower/mining-weather-advisor/internal/risk"
	"github.com/kjstillabower/mining-weather-advisor/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// DashboardView is the data behind one dashboard page.
type DashboardView struct {
	Location   string
	Days       int
	MaxDays    int
	Report     *service.Report
	ShowDetail bool
	ShowChart  bool
	ChartURL   template.URL
	Error      string
}

// Dashboard renders the interactive HTML page.
type Dashboard struct {
	tmpl *template.Template
}

// NewDashboard parses the embedded page template.
func NewDashboard() (*Dashboard, error) {
	funcs := template.FuncMap{
		"locationLabel": LocationLabel,
		"joinRisks":     JoinRisks,
		"number":        FormatNumber,
		"timestamp": func(a risk.Assessment) string {
			return a.Timestamp.Format(TimestampLayout)
		},
		"levelClass": func(l risk.Level) string {
			return fmt.Sprintf("level-%d", l)
		},
	}
	tmpl, err := template.New("dashboard.html").Funcs(funcs).ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	return &Dashboard{tmpl: tmpl}, nil
}

// Render writes the page for v to w.
func (d *Dashboard) Render(w io.Writer, v DashboardView) error {
	if err := d.tmpl.Execute(w, v); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}
