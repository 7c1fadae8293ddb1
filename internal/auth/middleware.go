package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// CookieName is the admin session cookie.
const CookieName = "flightdeck_session"

type contextKey string

const sessionContextKey contextKey = "session"

// LoginPath is where unauthenticated HTML requests are sent.
const LoginPath = "/admin/login"

// Load attaches the session named by the request cookie, if any. It never blocks.
func Load(store *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
				if session, ok := store.Get(cookie.Value); ok {
					r = r.WithContext(WithSession(r.Context(), session))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests without a session: HTML requests are redirected
// to the login page and JSON requests get 401.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if wantsJSON(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	})
}

// WithSession returns a context carrying session.
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// FromContext returns the session attached by Load.
func FromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(Session)
	return session, ok
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/admin/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
