package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
)

var dashboardTmpl *template.Template

// loadTemplatesFromFS parses the page and partial templates under dir.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	dashboardTmpl = tmpl
	return nil
}

// LoadTemplates loads the embedded templates. Call it during startup; the
// server must not start when it fails.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

var funcs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
}

var errNotLoaded = errors.New("dashboard template not loaded: call views.LoadTemplates during startup")

func execute(w io.Writer, name string, data any) error {
	if dashboardTmpl == nil {
		return errNotLoaded
	}
	return dashboardTmpl.ExecuteTemplate(w, name, data)
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	return execute(w, "dashboard.html", data)
}

// RenderDailyPartial renders only the daily table and charts, for HTMX refreshes.
func RenderDailyPartial(w io.Writer, data *DailyData) error {
	return execute(w, "partials/daily.html", data)
}

// RenderCorrelationPartial renders only the correlation matrix.
func RenderCorrelationPartial(w io.Writer, data *CorrelationData) error {
	return execute(w, "partials/correlation.html", data)
}

// RenderPreviewPartial renders the raw record preview.
func RenderPreviewPartial(w io.Writer, data *PreviewData) error {
	return execute(w, "partials/preview.html", data)
}
