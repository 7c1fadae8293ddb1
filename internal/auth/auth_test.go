package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	a, err := NewAuthenticator("Chief@Example.com", string(hash))
	require.NoError(t, err)
	return a
}

func TestSessionStoreExpiry(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(time.Hour)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	session, err := store.Create("chief@example.com")
	require.NoError(t, err)
	assert.Len(t, session.Token, 64)

	got, ok := store.Get(session.Token)
	require.True(t, ok)
	assert.Equal(t, "chief@example.com", got.Email)

	now = now.Add(time.Hour)
	_, ok = store.Get(session.Token)
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestSessionStoreSweep(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(time.Minute)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, err := store.Create("a@example.com")
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = store.Create("b@example.com")
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestSessionTokensAreUnique(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(0)
	assert.Equal(t, DefaultSessionTTL, store.TTL())
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := store.Create("a@example.com")
		require.NoError(t, err)
		require.False(t, seen[s.Token])
		seen[s.Token] = true
	}
}

func TestAuthenticatorCheck(t *testing.T) {
	t.Parallel()

	a := testAuthenticator(t)
	assert.NoError(t, a.Check(" chief@example.com ", "hunter22"))
	assert.ErrorIs(t, a.Check("chief@example.com", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, a.Check("other@example.com", "hunter22"), ErrInvalidCredentials)
}

func TestNewAuthenticatorRejectsBadHash(t *testing.T) {
	t.Parallel()

	_, err := NewAuthenticator("chief@example.com", "plaintext")
	assert.Error(t, err)
	_, err = NewAuthenticator("", "$2a$04$abcdefghijklmnopqrstuu")
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")))

	_, err = HashPassword("")
	assert.Error(t, err)
}

func protected() http.Handler {
	return Load(NewSessionStore(time.Hour))(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
}

func TestRequireAdminRedirectsHTML(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	protected().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/aircraft", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))
}

func TestRequireAdminRejectsJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	protected().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/api/analytics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestLoginLogoutFlow(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(time.Hour)
	var failed bool
	view := func(w http.ResponseWriter, _ *http.Request, status int, f bool) {
		failed = f
		w.WriteHeader(status)
	}
	h := NewHandlers(store, testAuthenticator(t), view, true, nil)

	bad := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(url.Values{
		"email": {"chief@example.com"}, "password": {"nope"},
	}.Encode()))
	bad.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Login(rec, bad)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, failed)
	assert.Zero(t, store.Len())

	good := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(url.Values{
		"email": {"chief@example.com"}, "password": {"hunter22"},
	}.Encode()))
	good.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.Login(rec, good)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, CookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	_, ok := store.Get(cookie.Value)
	require.True(t, ok)

	out := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	out.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.Logout(rec, out)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	_, ok = store.Get(cookie.Value)
	assert.False(t, ok)
}
