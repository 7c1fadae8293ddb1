// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/analytics"
	"github.com/JakeFAU/flightdeck/internal/api"
	"github.com/JakeFAU/flightdeck/internal/auth"
	"github.com/JakeFAU/flightdeck/internal/catalog"
	"github.com/JakeFAU/flightdeck/internal/clock/system"
	"github.com/JakeFAU/flightdeck/internal/config"
	"github.com/JakeFAU/flightdeck/internal/dispatcher"
	"github.com/JakeFAU/flightdeck/internal/hash/sha256"
	"github.com/JakeFAU/flightdeck/internal/id/uuid"
	"github.com/JakeFAU/flightdeck/internal/leads"
	"github.com/JakeFAU/flightdeck/internal/metrics"
	"github.com/JakeFAU/flightdeck/internal/notify"
	"github.com/JakeFAU/flightdeck/internal/notify/email"
	"github.com/JakeFAU/flightdeck/internal/policy/ratelimit"
	"github.com/JakeFAU/flightdeck/internal/policy/retry"
	pubmemory "github.com/JakeFAU/flightdeck/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/flightdeck/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/flightdeck/internal/queue/memory"
	"github.com/JakeFAU/flightdeck/internal/worker"
)

const (
	sessionSweepInterval = 10 * time.Minute
	localEventRetention  = 500
)

// App holds all the shared, long-lived services for the site server.
// It is built once at startup by New and torn down by Close.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	Stores    *Stores
	Catalog   *catalog.Service
	Leads     *leads.Service
	Analytics *analytics.Service
	Recorder  *analytics.Recorder
	Sessions  *auth.SessionStore
	// LocalEvents holds published lead events when Pub/Sub is not configured.
	LocalEvents *pubmemory.Publisher

	queue      *queuememory.Queue
	dispatcher *dispatcher.Dispatcher
	server     *api.Server
	closers    []func()
	closeOnce  sync.Once
}

// New builds every service from cfg. It fails fast when a backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	logger.Info("initializing application services")

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}
	a.Stores = stores
	a.closers = append(a.closers, stores.Close)

	clock := system.New()
	ids := uuid.New()

	a.Catalog, err = catalog.New(catalog.Config{
		Backend:       stores.Docs,
		Blobs:         stores.Blobs,
		URLs:          stores.URLs,
		Clock:         clock,
		IDs:           ids,
		Hasher:        sha256.New(),
		Logger:        logger.Named("catalog"),
		MaxImageBytes: cfg.Storage.MaxImageBytes,
	})
	if err != nil {
		return nil, err
	}

	sender, err := newSender(cfg.Notify, logger.Named("email"))
	if err != nil {
		return nil, err
	}
	publisher, topic, err := a.newPublisher(ctx, cfg.Notify)
	if err != nil {
		return nil, err
	}

	a.queue = queuememory.NewQueue(cfg.Notify.QueueDepth)
	policy := retry.NewExponentialRetryPolicy(retry.WithMaxAttempts(cfg.Notify.MaxAttempts))
	workerCfg := worker.Config{
		To:          cfg.Notify.To,
		Topic:       topic,
		SendTimeout: cfg.Notify.SendTimeout,
	}
	workers := make([]*worker.Worker, 0, cfg.Notify.Workers)
	for i := 0; i < cfg.Notify.Workers; i++ {
		workers = append(workers, worker.New(
			a.queue,
			sender,
			publisher,
			policy,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	a.dispatcher = dispatcher.New(a.queue, workers, logger.Named("dispatcher"))

	a.Leads, err = leads.New(leads.Config{
		Backend:  stores.Docs,
		Clock:    clock,
		IDs:      ids,
		Notifier: a.dispatcher,
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   ratelimit.PerMinute(cfg.Leads.RatePerMinute),
			DefaultBurst: cfg.Leads.Burst,
			MaxKeys:      10000,
		}),
		Logger: logger.Named("leads"),
	})
	if err != nil {
		return nil, err
	}

	a.Analytics = analytics.NewService(stores.PageViews, clock, analytics.ServiceConfig{
		DefaultRange:    cfg.Analytics.DefaultRange,
		DefaultTimezone: cfg.Location().String(),
		SiteHost:        SiteHost(cfg.Server.BaseURL),
	})
	a.Recorder = analytics.NewRecorder(stores.PageViews, analytics.RecorderConfig{
		BufferSize:   cfg.Analytics.BufferSize,
		MaxBatch:     cfg.Analytics.BatchSize,
		MaxBatchWait: cfg.Analytics.BatchWait,
		Logger:       logger.Named("recorder"),
	})

	a.Sessions = auth.NewSessionStore(cfg.Auth.SessionTTL)
	var authenticator *auth.Authenticator
	if cfg.Auth.AdminConfigured() {
		authenticator, err = auth.NewAuthenticator(cfg.Auth.AdminEmail, cfg.Auth.AdminPasswordHash)
		if err != nil {
			return nil, fmt.Errorf("admin credentials: %w", err)
		}
	} else {
		logger.Warn("admin credentials not configured; dashboard login is disabled")
	}

	csrfKey, err := cfg.Auth.CSRFKeyBytes()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.CSRFKey == "" {
		logger.Warn("auth.csrf_key not set; using a random key for this process")
	}

	a.server, err = api.NewServer(api.Deps{
		Catalog:   a.Catalog,
		Leads:     a.Leads,
		Analytics: a.Analytics,
		Recorder:  a.Recorder,
		Ready:     stores.Docs,
		Sessions:  a.Sessions,
		Auth:      authenticator,
		Media:     stores.Media,
		Clock:     clock,
		IDs:       ids,
		Logger:    logger.Named("api"),
	}, api.Options{
		CSRFKey:        csrfKey,
		SecureCookies:  cfg.Auth.SecureCookies,
		RequestTimeout: cfg.Server.RequestTimeout,
		MediaPrefix:    mediaPrefix(cfg.Storage.PublicBaseURL),
		TrustedOrigins: trustedOrigins(cfg.Server.BaseURL),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("documents", cfg.Storage.DocumentBackend),
		zap.String("blobs", cfg.Storage.BlobBackend),
		zap.String("email", cfg.Notify.EmailProvider),
		zap.Int("workers", cfg.Notify.Workers),
	)
	return a, nil
}

// Handler returns the HTTP handler for the site.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run starts the notification workers and the HTTP server, blocking until ctx
// is canceled or the server fails. Shutdown drains in-flight requests within
// the configured shutdown timeout, then stops the workers.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		a.logger.Info("dispatcher started")
		a.dispatcher.Run(workerCtx)
	}()
	go a.sweepSessions(workerCtx)

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown initiated")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
			a.logger.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	// Closing the queue lets the workers drain what is already queued.
	a.queue.Close()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("notification workers did not drain before the shutdown deadline")
		stopWorkers()
		<-workersDone
	}
	a.Close(shutdownCtx)
	a.logger.Info("shutdown complete")
	return runErr
}

// Close flushes the pageview recorder and releases clients and connections.
func (a *App) Close(ctx context.Context) {
	a.closeOnce.Do(func() {
		if a.Recorder != nil {
			if err := a.Recorder.Close(ctx); err != nil {
				a.logger.Warn("pageview recorder did not drain", zap.Error(err))
			}
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
	})
}

func (a *App) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Sessions.Sweep(); n > 0 {
				a.logger.Debug("expired sessions removed", zap.Int("count", n))
			}
		}
	}
}

func newSender(cfg config.NotifyConfig, logger *zap.Logger) (email.Sender, error) {
	switch cfg.EmailProvider {
	case "resend":
		return email.NewResendSender(email.ResendConfig{
			APIKey:  cfg.ResendAPIKey,
			From:    cfg.From,
			BaseURL: cfg.ResendBaseURL,
		}, logger)
	case "noop", "":
		return email.NewNoopSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}

// newPublisher returns the lead event publisher and topic. Without a Pub/Sub
// project, events are kept in a bounded in-memory log instead.
func (a *App) newPublisher(ctx context.Context, cfg config.NotifyConfig) (notify.Publisher, string, error) {
	topic := cfg.PubSubTopic
	if topic == "" {
		topic = "flightdeck-leads"
	}
	if cfg.PubSubProject == "" {
		a.LocalEvents = pubmemory.New(pubmemory.WithRetention(localEventRetention))
		a.logger.Info("pubsub not configured; lead events kept in memory", zap.Int("retention", localEventRetention))
		return a.LocalEvents, topic, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSubProject)
	if err != nil {
		return nil, "", fmt.Errorf("create pubsub client: %w", err)
	}
	p := pubsubpublisher.New(client, map[string]string{"source": "flightdeck"})
	a.closers = append(a.closers, func() {
		p.Close()
		if err := client.Close(); err != nil {
			a.logger.Warn("close pubsub client", zap.Error(err))
		}
	})
	a.logger.Info("publishing lead events", zap.String("project", cfg.PubSubProject), zap.String("topic", topic))
	return p, topic, nil
}

// SiteHost returns the host of the public base URL, used to spot self-referrals.
func SiteHost(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func trustedOrigins(baseURL string) []string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// mediaPrefix is the path local media is mounted on, "/media" unless the
// public base is itself a path.
func mediaPrefix(publicBase string) string {
	if len(publicBase) > 1 && publicBase[0] == '/' {
		return publicBase
	}
	return "/media"
}
