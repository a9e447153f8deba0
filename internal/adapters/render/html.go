package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"

	"github.com/okian/xptrack/internal/domain/history"
	"github.com/okian/xptrack/pkg/metrics"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type namedProjection struct {
	Name       string
	Projection history.Projection
}

var funcs = template.FuncMap{
	"formatInt": FormatInt,
	"showDelta": ShowDelta,
	"delta":     showDeltaPtr,
	"int64":     func(n int) int64 { return int64(n) },
	"formatFloat": func(f float64) string {
		return FormatInt(int64(math.Round(f)))
	},
	"percent": func(p *int64) string {
		if p == nil {
			return "n/a"
		}
		return FormatDelta(*p) + "%"
	},
	"days": func(d *float64) string {
		if d == nil {
			return "never"
		}
		return fmt.Sprintf("%.1f", *d)
	},
	"deltaClass": func(d *int64) string {
		switch {
		case d == nil || *d == 0:
			return ""
		case *d > 0:
			return "up"
		default:
			return "down"
		}
	},
	// A falling rank number is an improvement.
	"rankClass": func(d *int64) string {
		switch {
		case d == nil || *d == 0:
			return ""
		case *d < 0:
			return "up"
		default:
			return "down"
		}
	},
	"pair": func(name string, p history.Projection) namedProjection {
		return namedProjection{Name: name, Projection: p}
	},
}

var reportTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/report.html.tmpl"),
)

// HTML writes a standalone report page to w.
func HTML(w io.Writer, title string, report history.Report) error {
	data := struct {
		Title  string
		Report history.Report
	}{Title: title, Report: report}
	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	metrics.RecordReportRendered("html")
	return nil
}
