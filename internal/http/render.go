package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

var pages = []string{"home", "new", "fire", "advice", "profile", "login", "error"}

// renderer holds one template set per page, each parsed with the layout.
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer(fsys fs.FS, funcs template.FuncMap) (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(fsys, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func templateFuncs(currency string, loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"money":    func(d decimal.Decimal) string { return core.FormatMoney(d, currency) },
		"moneyf":   func(f float64) string { return core.FormatFloat(f, currency) },
		"date":     func(ts core.Timestamp) string { return core.FormatDate(ts, loc) },
		"category": core.CategoryFor,
		"pct":      formatPercent,
		"num":      formatNumber,
	}
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// formatNumber prints a float without a trailing ".0" so it round-trips
// through a form field.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// page is the data every template receives. Data carries the page body.
type page struct {
	Title    string
	Active   string
	SignedIn bool
	Flash    string
	Error    string
	Retry    string
	Currency string
	Data     any
}

// render executes the page into a buffer first so a template failure never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	logger := log.FromContext(r.Context())
	if s.renderer == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	t, ok := s.renderer.pages[name]
	if !ok {
		logger.ErrorContext(r.Context(), "Unknown template",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			"template", name)
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}

	p.Currency = s.opts.Currency
	if !p.SignedIn && s.deps.Watcher != nil {
		p.SignedIn = s.deps.Watcher.Current() != nil
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldOperation, log.OpRender,
			log.FieldError, err,
			"template", name)
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
