// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/garyellow/lessonbot-go/internal/bot"
	"github.com/garyellow/lessonbot-go/internal/buildinfo"
	"github.com/garyellow/lessonbot-go/internal/config"
	"github.com/garyellow/lessonbot-go/internal/logger"
	"github.com/garyellow/lessonbot-go/internal/metrics"
	"github.com/garyellow/lessonbot-go/internal/r2client"
	"github.com/garyellow/lessonbot-go/internal/ratelimit"
	"github.com/garyellow/lessonbot-go/internal/revalidate"
	"github.com/garyellow/lessonbot-go/internal/sentry"
	"github.com/garyellow/lessonbot-go/internal/snapshot"
	"github.com/garyellow/lessonbot-go/internal/storage"
	"github.com/garyellow/lessonbot-go/internal/webhook"
	"github.com/garyellow/lessonbot-go/internal/whatsapp"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	objects        *r2client.Client  // nil without media storage
	snapshots      *snapshot.Manager // nil unless snapshots are enabled
	limiter        *ratelimit.Limiter
	revalidator    bot.Revalidator
	webhookHandler *webhook.Handler
	server         *http.Server
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "lessonbot-go")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Repositories log through package-level slog.*Context() calls.
	slog.SetDefault(log.Logger)

	info := buildinfo.Get()
	log.WithField("version", info.Version).WithField("commit", info.Commit).Info("Initializing application...")

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Release(),
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed; error tracking disabled")
	} else if sentry.IsEnabled() {
		log.WithField("host", cfg.SentryHost).Info("Sentry error tracking enabled")
	}

	app := &Application{cfg: cfg, logger: log}

	var dbOpts []storage.Option
	if cfg.HasMediaStorage() {
		objects, err := r2client.New(ctx, r2client.Config{
			Endpoint:      cfg.MediaEndpoint,
			AccessKeyID:   cfg.MediaAccessKeyID,
			SecretKey:     cfg.MediaSecretKey,
			BucketName:    cfg.Bot.MediaBucket,
			PublicBaseURL: cfg.MediaPublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("media storage: %w", err)
		}
		app.objects = objects
		dbOpts = append(dbOpts, storage.WithObjectStore(objects))
		log.WithField("bucket", objects.Bucket()).Info("Media storage configured")
	} else {
		log.Warn("Media storage not configured; media uploads will fail")
	}

	if cfg.SnapshotEnabled && app.objects != nil {
		lock := r2client.NewDistributedLock(app.objects, cfg.SnapshotKey+".lock", config.SnapshotUpload)
		app.snapshots = snapshot.New(app.objects, lock, snapshot.Config{
			SnapshotKey: cfg.SnapshotKey,
			TempDir:     cfg.DataDir,
		})

		restored, err := app.snapshots.Restore(ctx, cfg.SQLitePath())
		switch {
		case errors.Is(err, snapshot.ErrNotFound):
			log.Info("No database snapshot found; starting empty")
		case err != nil:
			log.WithError(err).Warn("Database snapshot restore failed; starting empty")
		case restored:
			log.WithField("key", cfg.SnapshotKey).Info("Database restored from snapshot")
		}
	}

	db, err := storage.New(ctx, cfg.SQLitePath(), dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	app.db = db
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)
	app.registry = registry
	app.metrics = m

	app.limiter = ratelimit.New(ratelimit.Config{
		MaxEvents:     cfg.Bot.RateLimitMax,
		Window:        cfg.Bot.RateLimitWindow(),
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	messenger := whatsapp.NewClient(whatsapp.Config{
		Token:         cfg.WhatsAppToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AppSecret:     cfg.SignatureSecret(),
		GraphURL:      cfg.WhatsAppGraphURL,
	})
	app.revalidator = revalidate.NewClient(cfg.RevalidateURL, cfg.RevalidateSecret, m)

	router := bot.NewRouter(bot.RouterConfig{
		Messenger:      messenger,
		Store:          db,
		Revalidator:    app.revalidator,
		Limiter:        app.limiter,
		AllowedSenders: cfg.Bot.AllowedSenders,
		Logger:         log,
		Metrics:        m,
	})
	if cfg.Bot.AllowAllSenders() {
		log.Warn("BOT_ALLOWED_SENDERS is empty; every sender may author lessons")
	}

	app.webhookHandler = webhook.NewHandler(webhook.HandlerConfig{
		Verifier:    messenger,
		Router:      router,
		VerifyToken: cfg.WhatsAppVerifyToken,
		Metrics:     m,
		Logger:      log,
	},
		webhook.WithDeduper(db),
		webhook.WithMaxConcurrency(cfg.Bot.MaxConcurrency),
	)

	gin.SetMode(gin.ReleaseMode)
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

// Run starts the HTTP server and background jobs.
//
// Graceful shutdown sequence:
//  1. Receive shutdown signal (SIGINT/SIGTERM)
//  2. Cancel context so background jobs stop
//  3. Wait for background jobs to complete
//  4. Close resources in order (HTTP server, webhook handler, limiter, database, logger)
//
// Jobs finish before the database closes so a running snapshot never sees a closed handle.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	errCh := a.startHTTPServer()

	select {
	case sig := <-a.waitForShutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-errCh:
		a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
	}

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startHTTPServer starts the HTTP server in a goroutine.
// The returned channel receives a listen error other than http.ErrServerClosed.
func (a *Application) startHTTPServer() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func (a *Application) waitForShutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// shutdown performs graceful shutdown of HTTP server and resources.
// It must run after background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for webhook messages to complete...")
	if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
	}

	if a.snapshots != nil {
		a.runSnapshot(shutdownCtx)
	}

	a.logger.Info("Closing resources...")
	a.limiter.Stop()

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	sentry.Flush(2 * time.Second)

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}
