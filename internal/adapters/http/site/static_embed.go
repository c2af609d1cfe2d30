package site

import (
	"embed"
	"fmt"
	"html/template"

	"github.com/okian/gitlytix/internal/domain/timefmt"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"readable": timefmt.FormatSeconds,
	"pct":      func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"num":      func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).ParseFS(templateFS, "templates/dashboard.html"))
