package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/auth"
	"github.com/JakeFAU/flightdeck/internal/config"
	"github.com/JakeFAU/flightdeck/internal/storage/local"
	"github.com/JakeFAU/flightdeck/internal/storage/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestNewWithMemoryBackends(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	assert.IsType(t, &memory.BlobStore{}, a.Stores.Blobs)
	assert.NotNil(t, a.Stores.Media)
	assert.Equal(t, "/media", a.Stores.URLs.Base)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/requests", "application/json",
		strings.NewReader(`{"kind":"contact","name":"Sam Pilot","email":"sam@example.com","message":"hi"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	reqs, err := a.Leads.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, reqs, 1)

	// Login stays disabled without configured admin credentials.
	resp, err = http.Get(srv.URL + "/admin/login")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNewWithLocalBlobsAndAdmin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.BlobBackend = "local"
	cfg.Storage.LocalDir = filepath.Join(t.TempDir(), "media")
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	cfg.Auth.AdminEmail = "ops@example.com"
	cfg.Auth.AdminPasswordHash = hash

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	assert.IsType(t, &local.BlobStore{}, a.Stores.Blobs)
	assert.Equal(t, cfg.Storage.LocalDir, a.Stores.URLs.LocalRoot)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRejectsBadBackends(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.DocumentBackend = "mongo"
	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Notify.EmailProvider = "carrier-pigeon"
	_, err = New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Auth.CSRFKey = "short"
	_, err = New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = freePort(t)
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d/requests", cfg.Server.Port), "application/json",
		strings.NewReader(`{"kind":"discovery-flight","name":"Ada Wright","email":"ada@example.com"}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NotNil(t, a.LocalEvents)
	require.Eventually(t, func() bool { return len(a.LocalEvents.Messages()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "flightdeck-leads", a.LocalEvents.Messages()[0].Topic)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "flight.example.com", SiteHost("https://flight.example.com:443/x"))
	assert.Equal(t, []string{"flight.example.com"}, trustedOrigins("https://flight.example.com"))
	assert.Nil(t, trustedOrigins("not a url"))
	assert.Equal(t, "/uploads", mediaPrefix("/uploads"))
	assert.Equal(t, "/media", mediaPrefix("https://cdn.example.com"))
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}
