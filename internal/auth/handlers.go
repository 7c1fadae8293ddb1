package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// LoginView renders the login form. failed is set after a rejected attempt.
type LoginView func(w http.ResponseWriter, r *http.Request, status int, failed bool)

// Handlers serves the login and logout endpoints.
type Handlers struct {
	store        *SessionStore
	auth         *Authenticator
	view         LoginView
	secureCookie bool
	logger       *zap.Logger
}

// NewHandlers wires the login flow. secureCookie marks the session cookie Secure.
func NewHandlers(store *SessionStore, auth *Authenticator, view LoginView, secureCookie bool, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{store: store, auth: auth, view: view, secureCookie: secureCookie, logger: logger}
}

// LoginForm renders the login page, or sends signed-in admins to the dashboard.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := FromContext(r.Context()); ok {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	h.view(w, r, http.StatusOK, false)
}

// Login checks the submitted credentials and starts a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	email := r.PostForm.Get("email")
	if err := h.auth.Check(email, r.PostForm.Get("password")); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.logger.Warn("admin login failed", zap.String("remote_addr", r.RemoteAddr))
		}
		h.view(w, r, http.StatusUnauthorized, true)
		return
	}
	session, err := h.store.Create(h.auth.Email())
	if err != nil {
		h.logger.Error("create session", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	h.setCookie(w, session.Token, int(h.store.TTL().Seconds()))
	h.logger.Info("admin logged in", zap.String("email", session.Email))
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout ends the current session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		h.store.Delete(cookie.Value)
	}
	h.setCookie(w, "", -1)
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *Handlers) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
