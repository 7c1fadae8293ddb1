package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/analytics"
	"github.com/JakeFAU/flightdeck/internal/auth"
	"github.com/JakeFAU/flightdeck/internal/catalog"
	"github.com/JakeFAU/flightdeck/internal/docstore"
	"github.com/JakeFAU/flightdeck/internal/leads"
	"github.com/JakeFAU/flightdeck/internal/metrics"
	"github.com/JakeFAU/flightdeck/internal/site"
)

// PageRecorder accepts beacon hits without blocking.
type PageRecorder interface {
	Record(v site.PageView)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VisitorIDs issues pageview IDs and anonymous visitor tokens.
type VisitorIDs interface {
	NewID() (string, error)
	NewToken() (string, error)
}

// Deps are the services the HTTP layer drives.
type Deps struct {
	Catalog   *catalog.Service
	Leads     *leads.Service
	Analytics *analytics.Service
	Recorder  PageRecorder
	Ready     Pinger
	Sessions  *auth.SessionStore
	// Auth may be nil, in which case admin login is refused.
	Auth   *auth.Authenticator
	Media  http.Handler
	Clock  site.Clock
	IDs    VisitorIDs
	Logger *zap.Logger
}

// Options tune middleware behavior.
type Options struct {
	CSRFKey        []byte
	SecureCookies  bool
	RequestTimeout time.Duration
	// MediaPrefix is the path Deps.Media is mounted on (default /media).
	MediaPrefix    string
	TrustedOrigins []string
	SiteName       string
}

// Server wires HTTP handlers to the site services.
type Server struct {
	router    chi.Router
	catalog   *catalog.Service
	leads     *leads.Service
	analytics *analytics.Service
	recorder  PageRecorder
	ready     Pinger
	sessions  *auth.SessionStore
	login     *auth.Handlers
	clock     site.Clock
	ids       VisitorIDs
	pages     map[string]*template.Template
	opts      Options
	logger    *zap.Logger
}

const (
	defaultRequestTimeout = 60 * time.Second
	pageviewBodyLimit     = 4 << 10
	leadBodyLimit         = 64 << 10
)

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, opts Options) (*Server, error) {
	if deps.Catalog == nil || deps.Leads == nil || deps.Analytics == nil {
		return nil, errors.New("api: catalog, leads and analytics services are required")
	}
	if deps.Sessions == nil || deps.Clock == nil || deps.IDs == nil {
		return nil, errors.New("api: sessions, clock and ids are required")
	}
	if len(opts.CSRFKey) != 32 {
		return nil, errors.New("api: csrf key must be 32 bytes")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.MediaPrefix == "" {
		opts.MediaPrefix = "/media"
	}
	if opts.SiteName == "" {
		opts.SiteName = "Flight School"
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s := &Server{
		catalog:   deps.Catalog,
		leads:     deps.Leads,
		analytics: deps.Analytics,
		recorder:  deps.Recorder,
		ready:     deps.Ready,
		sessions:  deps.Sessions,
		clock:     deps.Clock,
		ids:       deps.IDs,
		pages:     pages,
		opts:      opts,
		logger:    logger,
	}
	if deps.Auth != nil {
		s.login = auth.NewHandlers(deps.Sessions, deps.Auth, s.renderLogin, opts.SecureCookies, logger)
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))
	r.Use(auth.Load(deps.Sessions))
	r.Use(s.csrfMiddleware())

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", s.home)
	r.Get("/programs/{slug}", s.program)
	r.Get("/aircraft/{slug}", s.aircraft)
	r.Post("/requests", s.submitRequest)
	r.Get("/requests/thanks", s.thanks)
	r.Post("/api/pageviews", s.recordPageview)
	if deps.Media != nil {
		r.Mount(opts.MediaPrefix, http.StripPrefix(opts.MediaPrefix, deps.Media))
	}

	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", s.loginForm)
		r.Post("/login", s.loginSubmit)
		r.Post("/logout", s.logout)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/", s.adminDashboard)
			r.Get("/aircraft", s.adminAircraft)
			r.Post("/aircraft", s.adminCreateAircraft)
			r.Route("/aircraft/{id}", func(r chi.Router) {
				r.Post("/", s.adminUpdateAircraft)
				r.Post("/delete", s.adminDeleteAircraft)
				r.Post("/images", s.adminAddImage)
				r.Post("/images/delete", s.adminRemoveImage)
			})
			r.Get("/requests", s.adminRequests)
			r.Post("/requests/{id}/status", s.adminUpdateRequestStatus)
			r.Get("/analytics", s.adminAnalytics)
			r.Get("/api/analytics", s.adminAnalyticsJSON)
			r.Get("/api/requests", s.adminRequestsJSON)
		})
	})
	r.NotFound(s.notFound)

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "document store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// csrfMiddleware protects every unsafe form post. JSON lead submissions and the
// pageview beacon are exempt; browsers cannot send them cross-site without CORS.
func (s *Server) csrfMiddleware() func(http.Handler) http.Handler {
	protect := csrf.Protect(
		s.opts.CSRFKey,
		csrf.Secure(s.opts.SecureCookies),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.FieldName("csrf_token"),
		csrf.TrustedOrigins(s.opts.TrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Warn("csrf check failed", zap.String("path", r.URL.Path), zap.Error(csrf.FailureReason(r)))
			http.Error(w, "forbidden: invalid csrf token", http.StatusForbidden)
		})),
	)
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isJSON(r) && (r.URL.Path == "/api/pageviews" || r.URL.Path == "/requests") {
				next.ServeHTTP(w, r)
				return
			}
			if !s.opts.SecureCookies {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" || len(reqID) > 64 {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic recovered",
					zap.String("request_id", requestID(r.Context())),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

var errBadForm = errors.New("malformed form")

var validationErrs = []error{
	errBadForm,
	leads.ErrInvalidForm,
	catalog.ErrUnsupportedImage,
	analytics.ErrUnknownRange,
	analytics.ErrUnknownTimezone,
	analytics.ErrUnknownGranularity,
	analytics.ErrTooManyBuckets,
	site.ErrEmptyName,
	site.ErrEmptyTitle,
	site.ErrInvalidYear,
	site.ErrNegativeRate,
	site.ErrInvalidCategory,
	site.ErrInvalidEmail,
	site.ErrInvalidKind,
	site.ErrInvalidStatus,
	site.ErrMessageTooLong,
	site.ErrInvalidRating,
	site.ErrInvalidPackage,
	site.ErrInvalidPagePath,
	site.ErrMissingTimestamp,
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, catalog.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, leads.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, catalog.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, catalog.ErrNoBlobStore):
		return http.StatusServiceUnavailable
	}
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// publicMessage is the error text safe to show a client.
func publicMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, publicMessage(status, err))
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
