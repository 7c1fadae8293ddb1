package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/leads"
	"github.com/JakeFAU/flightdeck/internal/site"
)

// visitorCookie carries the anonymous session ID attached to pageviews.
const visitorCookie = "fd_vid"

const visitorCookieMaxAge = 30 * 24 * time.Hour

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	programs, err := s.catalog.ListPrograms(ctx, true)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	aircraft, err := s.catalog.ListAircraft(ctx, true)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	testimonials, err := s.catalog.ListTestimonials(ctx, true)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "home.html", "Flight training", map[string]any{
		"Programs":     programs,
		"Aircraft":     aircraft,
		"Testimonials": testimonials,
	})
}

func (s *Server) program(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.catalog.GetProgramBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	var fleet []site.Aircraft
	for _, slug := range p.Aircraft {
		a, err := s.catalog.GetAircraftBySlug(ctx, slug)
		if err != nil {
			s.logger.Debug("program aircraft missing", zap.String("program", p.Slug), zap.String("aircraft", slug))
			continue
		}
		fleet = append(fleet, a)
	}
	s.render(w, r, http.StatusOK, "program.html", p.Title, map[string]any{
		"Program":  p,
		"Aircraft": fleet,
	})
}

func (s *Server) aircraft(w http.ResponseWriter, r *http.Request) {
	a, err := s.catalog.GetAircraftBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "aircraft.html", a.Name, a)
}

func (s *Server) thanks(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "thanks.html", "Thank you", nil)
}

// submitRequest accepts a lead as JSON (201 with the new ID) or as a form post
// (303 to the thank-you page).
func (s *Server) submitRequest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, leadBodyLimit)
	if isJSON(r) {
		var form leads.Form
		if err := strictDecode(r, &form); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		req, err := s.leads.Submit(r.Context(), clientKey(r), form)
		if errors.Is(err, leads.ErrHoneypot) {
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
			return
		}
		if err != nil {
			s.writeLeadErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
		return
	}

	if err := r.ParseForm(); err != nil {
		s.renderLeadErr(w, r, fmt.Errorf("%w: %v", errBadForm, err))
		return
	}
	form := leads.Form{
		Kind:         r.PostForm.Get("kind"),
		Name:         r.PostForm.Get("name"),
		Email:        r.PostForm.Get("email"),
		Phone:        r.PostForm.Get("phone"),
		Message:      r.PostForm.Get("message"),
		ProgramSlug:  r.PostForm.Get("program_slug"),
		AircraftSlug: r.PostForm.Get("aircraft_slug"),
		SourcePath:   r.PostForm.Get("source_path"),
		Website:      r.PostForm.Get("website"),
	}
	if form.SourcePath == "" {
		form.SourcePath = refererPath(r)
	}
	if _, err := s.leads.Submit(r.Context(), clientKey(r), form); err != nil && !errors.Is(err, leads.ErrHoneypot) {
		s.renderLeadErr(w, r, err)
		return
	}
	http.Redirect(w, r, "/requests/thanks", http.StatusSeeOther)
}

func (s *Server) writeLeadErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *leads.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Error(), "fields": verr.Fields})
		return
	}
	s.writeErr(w, r, err)
}

func (s *Server) renderLeadErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.renderErr(w, r, err)
		return
	}
	data := map[string]any{
		"Message": publicMessage(status, err),
		"Back":    "/",
	}
	if status == http.StatusTooManyRequests {
		data["Message"] = "You've sent several requests in a short time. Please wait a minute and try again."
	}
	var verr *leads.ValidationError
	if errors.As(err, &verr) {
		data["Message"] = "Please check the highlighted fields."
		data["Fields"] = verr.Fields
		if verr.Err != nil {
			data["Message"] = verr.Err.Error()
		}
	}
	if back := refererPath(r); back != "" {
		data["Back"] = back
	}
	s.render(w, r, status, "lead_error.html", "Request not sent", data)
}

type pageviewRequest struct {
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
	SessionID string `json:"session_id"`
}

// recordPageview handles the beacon. Visitors without a session ID get a
// first-party cookie so repeat views count as one session.
func (s *Server) recordPageview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, pageviewBodyLimit)
	var req pageviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		if c, err := r.Cookie(visitorCookie); err == nil && c.Value != "" {
			sessionID = c.Value
		} else if token, err := s.ids.NewToken(); err == nil {
			sessionID = token
			http.SetCookie(w, &http.Cookie{
				Name:     visitorCookie,
				Value:    token,
				Path:     "/",
				MaxAge:   int(visitorCookieMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   s.opts.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
	}
	id, err := s.ids.NewID()
	if err != nil {
		s.writeErr(w, r, fmt.Errorf("pageview id: %w", err))
		return
	}
	view := site.PageView{
		ID:        id,
		Path:      req.Path,
		Referrer:  req.Referrer,
		UserAgent: r.UserAgent(),
		SessionID: sessionID,
		ViewedAt:  s.clock.Now().UTC(),
	}.Sanitized()
	if err := view.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.recorder != nil {
		s.recorder.Record(view)
	}
	w.WriteHeader(http.StatusAccepted)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func refererPath(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != r.Host) || !strings.HasPrefix(u.Path, "/") {
		return ""
	}
	return u.Path
}
