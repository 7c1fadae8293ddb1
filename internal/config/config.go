// Package config loads and validates flightdeck configuration via Viper.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // dashboards resolve IANA zones on hosts without zoneinfo

	"github.com/spf13/viper"
)

// maxAnalyticsBatch bounds how many pageviews one flush may hold.
const maxAnalyticsBatch = 10000

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Leads     LeadsConfig     `mapstructure:"leads"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	Timezone        string        `mapstructure:"timezone"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines the admin account and session settings.
type AuthConfig struct {
	AdminEmail        string        `mapstructure:"admin_email"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	CSRFKey           string        `mapstructure:"csrf_key"`
	SecureCookies     bool          `mapstructure:"secure_cookies"`
}

// StorageConfig selects the document and blob backends.
type StorageConfig struct {
	DocumentBackend string `mapstructure:"document_backend"`
	BlobBackend     string `mapstructure:"blob_backend"`
	Bucket          string `mapstructure:"bucket"`
	LocalDir        string `mapstructure:"local_dir"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	CacheControl    string `mapstructure:"cache_control"`
	MaxImageBytes   int64  `mapstructure:"max_image_bytes"`
}

// DBConfig controls access to PostgreSQL.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	TablePrefix     string        `mapstructure:"table_prefix"`
}

// NotifyConfig configures lead notification delivery.
type NotifyConfig struct {
	EmailProvider string        `mapstructure:"email_provider"`
	ResendAPIKey  string        `mapstructure:"resend_api_key"`
	ResendBaseURL string        `mapstructure:"resend_base_url"`
	From          string        `mapstructure:"from"`
	To            []string      `mapstructure:"to"`
	PubSubProject string        `mapstructure:"pubsub_project"`
	PubSubTopic   string        `mapstructure:"pubsub_topic"`
	QueueDepth    int           `mapstructure:"queue_depth"`
	Workers       int           `mapstructure:"workers"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
}

// AnalyticsConfig tunes the pageview recorder and dashboard defaults.
type AnalyticsConfig struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchWait    time.Duration `mapstructure:"batch_wait"`
	DefaultRange string        `mapstructure:"default_range"`
}

// LeadsConfig bounds lead submissions per client.
type LeadsConfig struct {
	RatePerMinute float64 `mapstructure:"rate_per_minute"`
	Burst         int     `mapstructure:"burst"`
}

// ScraperConfig drives the school directory crawl and website enrichment.
type ScraperConfig struct {
	ListingURL        string        `mapstructure:"listing_url"`
	PageParam         string        `mapstructure:"page_param"`
	MaxPages          int           `mapstructure:"max_pages"`
	AssumeMaxPages    bool          `mapstructure:"assume_max_pages"`
	ReadySelector     string        `mapstructure:"ready_selector"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	NavTimeout        time.Duration `mapstructure:"nav_timeout"`
	MaxParallel       int           `mapstructure:"max_parallel"`
	Headless          bool          `mapstructure:"headless"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute"`
	UserAgent         string        `mapstructure:"user_agent"`
	BatchSize         int           `mapstructure:"batch_size"`
	BatchDelay        time.Duration `mapstructure:"batch_delay"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	Output            string        `mapstructure:"output"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FLIGHTDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.timezone", "America/New_York")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("auth.admin_email", "")
	v.SetDefault("auth.admin_password_hash", "")
	v.SetDefault("auth.session_ttl", "12h")
	v.SetDefault("auth.csrf_key", "")
	v.SetDefault("auth.secure_cookies", false)
	v.SetDefault("storage.document_backend", "memory")
	v.SetDefault("storage.blob_backend", "memory")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.local_dir", "data/media")
	v.SetDefault("storage.public_base_url", "/media")
	v.SetDefault("storage.cache_control", "public, max-age=86400")
	v.SetDefault("storage.max_image_bytes", 10<<20)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("db.table_prefix", "fd_")
	v.SetDefault("notify.email_provider", "noop")
	v.SetDefault("notify.resend_api_key", "")
	v.SetDefault("notify.resend_base_url", "")
	v.SetDefault("notify.from", "Flight School <leads@example.com>")
	v.SetDefault("notify.to", []string{})
	v.SetDefault("notify.pubsub_project", "")
	v.SetDefault("notify.pubsub_topic", "flightdeck-leads")
	v.SetDefault("notify.queue_depth", 100)
	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.max_attempts", 3)
	v.SetDefault("notify.send_timeout", "15s")
	v.SetDefault("analytics.buffer_size", 4096)
	v.SetDefault("analytics.batch_size", 200)
	v.SetDefault("analytics.batch_wait", "2s")
	v.SetDefault("analytics.default_range", "7d")
	v.SetDefault("leads.rate_per_minute", 5)
	v.SetDefault("leads.burst", 3)
	v.SetDefault("scraper.listing_url", "")
	v.SetDefault("scraper.page_param", "page")
	v.SetDefault("scraper.max_pages", 50)
	v.SetDefault("scraper.assume_max_pages", false)
	v.SetDefault("scraper.ready_selector", "")
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.backoff_initial", "250ms")
	v.SetDefault("scraper.backoff_max", "5s")
	v.SetDefault("scraper.nav_timeout", "30s")
	v.SetDefault("scraper.max_parallel", 1)
	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.requests_per_minute", 20)
	v.SetDefault("scraper.user_agent", "flightdeck-scraper/1.0")
	v.SetDefault("scraper.batch_size", 5)
	v.SetDefault("scraper.batch_delay", "2s")
	v.SetDefault("scraper.fetch_timeout", "15s")
	v.SetDefault("scraper.output", "data/schools.csv")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("server.timezone: %w", err)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be > 0")
	}
	if c.Auth.CSRFKey != "" {
		if _, err := c.Auth.CSRFKeyBytes(); err != nil {
			return err
		}
	} else if c.Auth.SecureCookies {
		return fmt.Errorf("auth.csrf_key must be set when secure cookies are enabled")
	}
	switch c.Storage.DocumentBackend {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres document backend")
		}
	default:
		return fmt.Errorf("storage.document_backend %q is not one of memory, postgres", c.Storage.DocumentBackend)
	}
	switch c.Storage.BlobBackend {
	case "memory":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local blob backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs blob backend")
		}
	default:
		return fmt.Errorf("storage.blob_backend %q is not one of memory, local, gcs", c.Storage.BlobBackend)
	}
	switch c.Notify.EmailProvider {
	case "noop":
	case "resend":
		if c.Notify.ResendAPIKey == "" {
			return fmt.Errorf("notify.resend_api_key must be set for the resend provider")
		}
		if len(c.Notify.To) == 0 {
			return fmt.Errorf("notify.to must list at least one recipient for the resend provider")
		}
	default:
		return fmt.Errorf("notify.email_provider %q is not one of noop, resend", c.Notify.EmailProvider)
	}
	if c.Notify.QueueDepth <= 0 || c.Notify.Workers <= 0 {
		return fmt.Errorf("notify.queue_depth and notify.workers must be > 0")
	}
	if c.Notify.MaxAttempts <= 0 {
		return fmt.Errorf("notify.max_attempts must be > 0")
	}
	if c.Analytics.BatchSize <= 0 || c.Analytics.BufferSize <= 0 {
		return fmt.Errorf("analytics.batch_size and analytics.buffer_size must be > 0")
	}
	if c.Analytics.BatchSize > maxAnalyticsBatch {
		return fmt.Errorf("analytics.batch_size must be <= %d", maxAnalyticsBatch)
	}
	if c.Leads.RatePerMinute < 0 || c.Leads.Burst < 0 {
		return fmt.Errorf("leads.rate_per_minute and leads.burst must be >= 0")
	}
	if c.Scraper.ListingURL != "" {
		u, err := url.Parse(c.Scraper.ListingURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("scraper.listing_url must be an absolute URL")
		}
	}
	if c.Scraper.MaxPages <= 0 {
		return fmt.Errorf("scraper.max_pages must be > 0")
	}
	if c.Scraper.MaxRetries <= 0 {
		return fmt.Errorf("scraper.max_retries must be > 0")
	}
	if c.Scraper.BatchSize <= 0 {
		return fmt.Errorf("scraper.batch_size must be > 0")
	}
	return nil
}

// Location returns the dashboard timezone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CSRFKeyBytes decodes the CSRF key: 64 hex characters or 32 raw bytes.
// An empty key yields a random one, so forms break across restarts.
func (a AuthConfig) CSRFKeyBytes() ([]byte, error) {
	if a.CSRFKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate csrf key: %w", err)
		}
		return key, nil
	}
	if len(a.CSRFKey) == 64 {
		if key, err := hex.DecodeString(a.CSRFKey); err == nil {
			return key, nil
		}
	}
	if len(a.CSRFKey) == 32 {
		return []byte(a.CSRFKey), nil
	}
	return nil, fmt.Errorf("auth.csrf_key must be 64 hex characters or 32 bytes")
}

// AdminConfigured reports whether the admin dashboard can accept logins.
func (a AuthConfig) AdminConfigured() bool {
	return a.AdminEmail != "" && a.AdminPasswordHash != ""
}
