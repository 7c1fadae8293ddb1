package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/analytics"
	"github.com/JakeFAU/flightdeck/internal/site"
)

const (
	recentRequests      = 10
	defaultRequestLimit = 50
	maxRequestLimit     = 500
	multipartMemory     = 1 << 20
)

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	if s.login == nil {
		s.renderLogin(w, r, http.StatusServiceUnavailable, false)
		return
	}
	s.login.LoginForm(w, r)
}

func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if s.login == nil {
		s.logger.Warn("admin login attempted but no admin account is configured")
		s.renderLogin(w, r, http.StatusServiceUnavailable, true)
		return
	}
	s.login.Login(w, r)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if s.login == nil {
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
		return
	}
	s.login.Logout(w, r)
}

func (s *Server) adminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := s.leads.Counts(ctx)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	recent, err := s.leads.List(ctx, "")
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	if len(recent) > recentRequests {
		recent = recent[:recentRequests]
	}
	s.render(w, r, http.StatusOK, "admin_dashboard.html", "Dashboard", map[string]any{
		"Counts": counts,
		"Recent": recent,
	})
}

func (s *Server) adminAircraft(w http.ResponseWriter, r *http.Request) {
	s.renderFleet(w, r, http.StatusOK, "")
}

func (s *Server) renderFleet(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	fleet, err := s.catalog.ListAircraft(r.Context(), false)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	s.render(w, r, status, "admin_aircraft.html", "Fleet", map[string]any{
		"Aircraft": fleet,
		"Error":    errMsg,
	})
}

// fleetErr re-renders the fleet page for client errors and falls back to renderErr otherwise.
func (s *Server) fleetErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge {
		s.renderFleet(w, r, status, err.Error())
		return
	}
	s.renderErr(w, r, err)
}

func (s *Server) adminCreateAircraft(w http.ResponseWriter, r *http.Request) {
	a, err := aircraftFromForm(r)
	if err != nil {
		s.fleetErr(w, r, err)
		return
	}
	created, err := s.catalog.CreateAircraft(r.Context(), a)
	if err != nil {
		s.fleetErr(w, r, err)
		return
	}
	redirectFlash(w, r, "/admin/aircraft", "Added "+created.Name)
}

func (s *Server) adminUpdateAircraft(w http.ResponseWriter, r *http.Request) {
	a, err := aircraftFromForm(r)
	if err != nil {
		s.fleetErr(w, r, err)
		return
	}
	updated, err := s.catalog.UpdateAircraft(r.Context(), chi.URLParam(r, "id"), a)
	if err != nil {
		s.fleetErr(w, r, err)
		return
	}
	redirectFlash(w, r, "/admin/aircraft", "Saved "+updated.Name)
}

func (s *Server) adminDeleteAircraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.catalog.DeleteAircraft(r.Context(), id); err != nil {
		s.fleetErr(w, r, err)
		return
	}
	redirectFlash(w, r, "/admin/aircraft", "Aircraft deleted")
}

func (s *Server) adminAddImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.catalog.MaxImageBytes()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fleetErr(w, r, err)
			return
		}
		s.fleetErr(w, r, fmt.Errorf("%w: %v", errBadForm, err))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		s.fleetErr(w, r, fmt.Errorf("%w: image file is required", errBadForm))
		return
	}
	defer file.Close()

	a, err := s.catalog.AddAircraftImage(r.Context(), chi.URLParam(r, "id"), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.fleetErr(w, r, err)
		return
	}
	redirectFlash(w, r, "/admin/aircraft", "Image added to "+a.Name)
}

func (s *Server) adminRemoveImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fleetErr(w, r, fmt.Errorf("%w: %v", errBadForm, err))
		return
	}
	a, err := s.catalog.RemoveAircraftImage(r.Context(), chi.URLParam(r, "id"), r.PostForm.Get("url"))
	if err != nil {
		s.fleetErr(w, r, err)
		return
	}
	redirectFlash(w, r, "/admin/aircraft", "Image removed from "+a.Name)
}

func (s *Server) adminRequests(w http.ResponseWriter, r *http.Request) {
	status, err := parseStatusFilter(r)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	requests, err := s.leads.List(r.Context(), status)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "admin_requests.html", "Requests", map[string]any{
		"Requests": requests,
		"Status":   status,
	})
}

// adminRequestsJSON handles GET /admin/api/requests?status=&limit=&offset=.
func (s *Server) adminRequestsJSON(w http.ResponseWriter, r *http.Request) {
	status, err := parseStatusFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRequestLimit, maxRequestLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	requests, err := s.leads.List(r.Context(), status)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	total := len(requests)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": requests[offset:end],
		"total":    total,
	})
}

func (s *Server) adminUpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderErr(w, r, fmt.Errorf("%w: %v", errBadForm, err))
		return
	}
	status := site.RequestStatus(r.PostForm.Get("status"))
	req, err := s.leads.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}
	s.logger.Info("request status updated", zap.String("request_id", req.ID), zap.String("status", string(req.Status)))
	redirectFlash(w, r, "/admin/requests", fmt.Sprintf("%s marked %s", req.Name, req.Status))
}

func (s *Server) adminAnalytics(w http.ResponseWriter, r *http.Request) {
	rangeName := r.URL.Query().Get("range")
	tz := r.URL.Query().Get("tz")
	data := map[string]any{
		"Ranges":   analytics.RangeNames,
		"Range":    rangeName,
		"Timezone": tz,
	}
	dash, err := s.analytics.Dashboard(r.Context(), rangeName, tz)
	if err != nil {
		status := statusFor(err)
		if status != http.StatusBadRequest {
			s.renderErr(w, r, err)
			return
		}
		data["Error"] = err.Error()
		s.render(w, r, status, "admin_analytics.html", "Traffic", data)
		return
	}
	data["Range"] = dash.Range
	data["Timezone"] = dash.Timezone
	data["Dashboard"] = &dash
	s.render(w, r, http.StatusOK, "admin_analytics.html", "Traffic", data)
}

// adminAnalyticsJSON handles GET /admin/api/analytics?range=7d&tz=America/Chicago.
func (s *Server) adminAnalyticsJSON(w http.ResponseWriter, r *http.Request) {
	dash, err := s.analytics.Dashboard(r.Context(), r.URL.Query().Get("range"), r.URL.Query().Get("tz"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func aircraftFromForm(r *http.Request) (site.Aircraft, error) {
	if err := r.ParseForm(); err != nil {
		return site.Aircraft{}, fmt.Errorf("%w: %v", errBadForm, err)
	}
	f := r.PostForm
	a := site.Aircraft{
		Name:        strings.TrimSpace(f.Get("name")),
		Slug:        strings.TrimSpace(f.Get("slug")),
		Model:       strings.TrimSpace(f.Get("model")),
		TailNumber:  strings.ToUpper(strings.TrimSpace(f.Get("tail_number"))),
		Category:    f.Get("category"),
		Description: strings.TrimSpace(f.Get("description")),
		Features:    splitLines(f.Get("features")),
		Available:   f.Get("available") == "true",
	}
	var err error
	if a.Year, err = optionalInt(f, "year"); err != nil {
		return site.Aircraft{}, err
	}
	if a.SortOrder, err = optionalInt(f, "sort_order"); err != nil {
		return site.Aircraft{}, err
	}
	if a.HourlyRate, err = parseCents(f.Get("hourly_rate")); err != nil {
		return site.Aircraft{}, err
	}
	return a, nil
}

func optionalInt(f url.Values, key string) (int, error) {
	raw := strings.TrimSpace(f.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number", errBadForm, key)
	}
	return n, nil
}

// parseCents reads a dollar amount such as "165", "165.5" or "$1,200.00".
func parseCents(raw string) (int64, error) {
	raw = strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: hourly rate must be an amount in dollars", errBadForm)
	}
	return int64(math.Round(v * 100)), nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func parseStatusFilter(r *http.Request) (site.RequestStatus, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if raw == "" {
		return "", nil
	}
	status := site.RequestStatus(raw)
	if !status.Valid() {
		return "", site.ErrInvalidStatus
	}
	return status, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func redirectFlash(w http.ResponseWriter, r *http.Request, path, msg string) {
	http.Redirect(w, r, path+"?flash="+url.QueryEscape(msg), http.StatusSeeOther)
}
