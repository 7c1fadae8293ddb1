package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.DocumentBackend != "memory" || cfg.Storage.BlobBackend != "memory" {
		t.Fatalf("expected memory backends by default, got %+v", cfg.Storage)
	}
	if cfg.Scraper.MaxPages != 50 {
		t.Fatalf("expected max pages 50, got %d", cfg.Scraper.MaxPages)
	}
	if cfg.Auth.SessionTTL != 12*time.Hour {
		t.Fatalf("expected 12h session ttl, got %v", cfg.Auth.SessionTTL)
	}
	if cfg.Analytics.BatchWait != 2*time.Second {
		t.Fatalf("expected 2s batch wait, got %v", cfg.Analytics.BatchWait)
	}
	if cfg.Location().String() != "America/New_York" {
		t.Fatalf("expected default timezone, got %s", cfg.Location())
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  timezone: America/Denver
auth:
  admin_email: chief@example.com
  admin_password_hash: "$2a$12$abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ012"
  session_ttl: 2h
  csrf_key: 000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f
  secure_cookies: true
storage:
  document_backend: postgres
  blob_backend: gcs
  bucket: flightdeck-media
db:
  dsn: postgres://localhost/flightdeck
  table_prefix: site_
notify:
  email_provider: resend
  resend_api_key: re_test
  to: ["office@example.com", "cfi@example.com"]
  workers: 4
leads:
  rate_per_minute: 2
  burst: 1
scraper:
  listing_url: https://directory.example.com/schools
  max_pages: 12
  batch_delay: 500ms
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.AdminConfigured() || cfg.Auth.SessionTTL != 2*time.Hour {
		t.Fatalf("expected admin overrides to apply: %+v", cfg.Auth)
	}
	key, err := cfg.Auth.CSRFKeyBytes()
	if err != nil || len(key) != 32 || key[31] != 0x1f {
		t.Fatalf("expected hex csrf key to decode, got %v %v", key, err)
	}
	if cfg.DB.TablePrefix != "site_" || cfg.Storage.Bucket != "flightdeck-media" {
		t.Fatalf("expected storage overrides to apply: %+v %+v", cfg.Storage, cfg.DB)
	}
	if len(cfg.Notify.To) != 2 || cfg.Notify.Workers != 4 {
		t.Fatalf("expected notify overrides to apply: %+v", cfg.Notify)
	}
	if cfg.Scraper.MaxPages != 12 || cfg.Scraper.BatchDelay != 500*time.Millisecond {
		t.Fatalf("expected scraper overrides to apply: %+v", cfg.Scraper)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected development logging to be disabled")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FLIGHTDECK_SERVER_PORT", "7070")
	t.Setenv("FLIGHTDECK_LEADS_BURST", "9")
	t.Setenv("FLIGHTDECK_STORAGE_BLOB_BACKEND", "local")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 || cfg.Leads.Burst != 9 || cfg.Storage.BlobBackend != "local" {
		t.Fatalf("expected env overrides to apply: %+v %+v %+v", cfg.Server, cfg.Leads, cfg.Storage)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		edit func(*Config)
		want string
	}{
		{name: "invalid port", edit: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "unknown timezone", edit: func(c *Config) { c.Server.Timezone = "Mars/Olympus" }, want: "server.timezone"},
		{name: "postgres without dsn", edit: func(c *Config) { c.Storage.DocumentBackend = "postgres" }, want: "db.dsn"},
		{name: "unknown document backend", edit: func(c *Config) { c.Storage.DocumentBackend = "mongo" }, want: "storage.document_backend"},
		{name: "gcs without bucket", edit: func(c *Config) { c.Storage.BlobBackend = "gcs" }, want: "storage.bucket"},
		{name: "resend without key", edit: func(c *Config) { c.Notify.EmailProvider = "resend" }, want: "notify.resend_api_key"},
		{name: "resend without recipients", edit: func(c *Config) {
			c.Notify.EmailProvider = "resend"
			c.Notify.ResendAPIKey = "re_test"
			c.Notify.To = nil
		}, want: "notify.to"},
		{name: "secure cookies without csrf key", edit: func(c *Config) { c.Auth.SecureCookies = true }, want: "auth.csrf_key"},
		{name: "short csrf key", edit: func(c *Config) { c.Auth.CSRFKey = "short" }, want: "auth.csrf_key"},
		{name: "relative listing url", edit: func(c *Config) { c.Scraper.ListingURL = "/schools" }, want: "scraper.listing_url"},
		{name: "zero max pages", edit: func(c *Config) { c.Scraper.MaxPages = 0 }, want: "scraper.max_pages"},
		{name: "zero workers", edit: func(c *Config) { c.Notify.Workers = 0 }, want: "notify.workers"},
		{name: "oversized analytics batch", edit: func(c *Config) { c.Analytics.BatchSize = 20000 }, want: "analytics.batch_size"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Notify.To = append([]string(nil), base.Notify.To...)
			tt.edit(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCSRFKeyBytesGeneratesWhenEmpty(t *testing.T) {
	t.Parallel()

	key, err := AuthConfig{}.CSRFKeyBytes()
	if err != nil || len(key) != 32 {
		t.Fatalf("expected random 32 byte key, got %d bytes, err %v", len(key), err)
	}
	raw, err := AuthConfig{CSRFKey: strings.Repeat("k", 32)}.CSRFKeyBytes()
	if err != nil || string(raw) != strings.Repeat("k", 32) {
		t.Fatalf("expected raw key to pass through, got %q %v", raw, err)
	}
}
