package http

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"
	"time"

	"teamorders/internal/core"
	applog "teamorders/internal/log"
	"teamorders/internal/report"
	"teamorders/internal/session"
)

var templateFuncs = template.FuncMap{
	"money": func(m core.Money) string { return m.String() },
	"plain": func(m core.Money) string { return m.Plain() },
	"negative": func(m core.Money) bool {
		return m.Cents < 0
	},
	"teamMoney": func(spend map[string]core.Money, team string) string {
		if v, ok := spend[team]; ok {
			return v.String()
		}
		return ""
	},
}

// page carries what the layout needs on every screen.
type page struct {
	Title    string
	Identity core.Identity
	Week     report.Week
}

func (s *Server) newPage(r *http.Request, title string, week report.Week) page {
	return page{
		Title:    title,
		Identity: session.FromContext(r.Context()).Identity,
		Week:     week,
	}
}

// render executes a template into a buffer so a failing template never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	logger := applog.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldComponent, applog.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRender,
			"template", name)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// serverError logs err and answers 500 without exposing it.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), msg,
		applog.FieldError, err,
		applog.FieldPath, r.URL.Path)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// saveSession writes state or answers 500.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, st session.State) bool {
	if err := s.sessions.Save(w, st); err != nil {
		s.serverError(w, r, "Failed to save session", err)
		return false
	}
	return true
}

// currentWeek is the ordering week containing now.
func (s *Server) currentWeek() report.Week {
	return s.reports.WeekAt(s.now())
}

// weekParam reads ?week=YYYY-MM-DD (any day of the week). Missing or
// malformed values select the current week.
func (s *Server) weekParam(r *http.Request) report.Week {
	v := strings.TrimSpace(r.URL.Query().Get("week"))
	if v == "" {
		return s.currentWeek()
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Ignoring invalid week parameter", "week", v)
		return s.currentWeek()
	}
	return report.WeekOf(core.DateOf(t))
}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
