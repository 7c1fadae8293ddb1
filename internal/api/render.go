package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/auth"
	"github.com/JakeFAU/flightdeck/internal/catalog"
	"github.com/JakeFAU/flightdeck/internal/site"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"home.html",
	"program.html",
	"aircraft.html",
	"thanks.html",
	"lead_error.html",
	"notfound.html",
	"login.html",
	"admin_dashboard.html",
	"admin_aircraft.html",
	"admin_requests.html",
	"admin_analytics.html",
}

var funcs = template.FuncMap{
	"money": func(cents int64) string {
		sign := ""
		if cents < 0 {
			sign = "-"
			cents = -cents
		}
		return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
	},
	"dollars": func(cents int64) string {
		return fmt.Sprintf("%d.%02d", cents/100, cents%100)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006 3:04 PM")
	},
	"markdown": func(body string) template.HTML {
		html, err := catalog.RenderMarkdown(body)
		if err != nil {
			return template.HTML(template.HTMLEscapeString(body))
		}
		return html
	},
	"join":     strings.Join,
	"lines":    func(items []string) string { return strings.Join(items, "\n") },
	"statuses": func() []site.RequestStatus { return site.RequestStatuses },
	"kinds":    func() []site.RequestKind { return site.RequestKinds },
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tpl
	}
	return pages, nil
}

// page is the data every template receives.
type page struct {
	Title     string
	SiteName  string
	CSRFField template.HTML
	SignedIn  bool
	Admin     bool
	Beacon    bool
	Flash     string
	Data      any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	tpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("unknown template", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	_, signedIn := auth.FromContext(r.Context())
	admin := strings.HasPrefix(r.URL.Path, "/admin")
	p := page{
		Title:     title,
		SiteName:  s.opts.SiteName,
		CSRFField: csrf.TemplateField(r),
		SignedIn:  signedIn,
		Admin:     admin,
		Beacon:    !admin,
		Flash:     r.URL.Query().Get("flash"),
		Data:      data,
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", p); err != nil {
		s.logger.Error("render template", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("write page", zap.Error(err))
	}
}

// renderErr shows the error page matching err, logging server faults.
func (s *Server) renderErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusNotFound {
		s.notFound(w, r)
		return
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	http.Error(w, publicMessage(status, err), status)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/admin/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.render(w, r, http.StatusNotFound, "notfound.html", "Page not found", nil)
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, failed bool) {
	s.render(w, r, status, "login.html", "Admin sign in", map[string]any{"Failed": failed})
}
