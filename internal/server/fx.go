// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/ajou-notice-sync/internal/api"
	"github.com/JakeFAU/ajou-notice-sync/internal/board"
	"github.com/JakeFAU/ajou-notice-sync/internal/clock/system"
	"github.com/JakeFAU/ajou-notice-sync/internal/config"
	collyfetcher "github.com/JakeFAU/ajou-notice-sync/internal/fetcher/colly"
	"github.com/JakeFAU/ajou-notice-sync/internal/id/uuid"
	"github.com/JakeFAU/ajou-notice-sync/internal/images"
	"github.com/JakeFAU/ajou-notice-sync/internal/ingest"
	"github.com/JakeFAU/ajou-notice-sync/internal/logging"
	"github.com/JakeFAU/ajou-notice-sync/internal/metrics"
	"github.com/JakeFAU/ajou-notice-sync/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/ajou-notice-sync/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/ajou-notice-sync/internal/publisher/pubsub"
	"github.com/JakeFAU/ajou-notice-sync/internal/scheduler"
	"github.com/JakeFAU/ajou-notice-sync/internal/storage/gcs"
	memorystorage "github.com/JakeFAU/ajou-notice-sync/internal/storage/memory"
	"github.com/JakeFAU/ajou-notice-sync/internal/storage/migrations"
	pgstore "github.com/JakeFAU/ajou-notice-sync/internal/storage/postgres"
	"github.com/JakeFAU/ajou-notice-sync/internal/summarizer"
	"github.com/JakeFAU/ajou-notice-sync/internal/syncer"
)

// App contains the application's dependencies.
type App struct {
	cfg         *config.Config
	logger      *zap.Logger
	apiServer   *api.Server
	runner      *ingest.Runner
	scheduler   *scheduler.Scheduler
	noticeStore ingest.Store
	closers     []closer
}

// closer releases one piece of infrastructure created during Build.
type closer struct {
	name  string
	close func() error
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	// Only non-sensitive fields are logged.
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("board_url", cfg.Board.BaseURL),
		zap.Strings("models", cfg.Summarizer.Models),
		zap.Bool("postgres", cfg.Database.DSN != ""),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("scheduler", cfg.Scheduler.Enabled),
	)
	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Runner exposes the ingest runner, e.g. for one-shot syncs from the CLI.
func (a *App) Runner() *ingest.Runner {
	return a.runner
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.ShutdownTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close gracefully shuts down the application.
func (a *App) Close(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Warn("scheduler stop timed out", zap.Error(err))
		}
	}
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// closeInfrastructure releases resources in reverse creation order. It is safe
// to call more than once.
func (a *App) closeInfrastructure() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("close failed", zap.String("resource", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}
	metrics.Init()

	if err := buildComponents(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// buildComponents wires every component. Infrastructure opened before a
// failing step is closed before returning.
func buildComponents(ctx context.Context, app *App) (err error) {
	defer func() {
		if err != nil {
			app.closeInfrastructure()
		}
	}()
	cfg, logger := app.cfg, app.logger

	app.logger.Info("building application dependencies")
	archive, err := setupStorage(ctx, app)
	if err != nil {
		return err
	}

	pinger, err := setupDatabase(ctx, app)
	if err != nil {
		return err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return err
	}

	coordinator, err := setupCoordinator(ctx, app, archive)
	if err != nil {
		return err
	}

	clock, err := system.NewInZone(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("clock init failed: %w", err)
	}
	app.runner, err = ingest.NewRunner(
		app.noticeStore,
		coordinator,
		publisher,
		clock,
		uuid.New(),
		logger.Named("ingest"),
	)
	if err != nil {
		return fmt.Errorf("ingest runner init failed: %w", err)
	}

	if cfg.Scheduler.Enabled {
		app.scheduler, err = scheduler.New(scheduler.Config{
			Spec:       cfg.Scheduler.Spec,
			Timezone:   cfg.Scheduler.Timezone,
			RunTimeout: cfg.SchedulerRunTimeout(),
		}, app.runner, logger.Named("scheduler"))
		if err != nil {
			return fmt.Errorf("scheduler init failed: %w", err)
		}
	} else {
		app.logger.Info("scheduler disabled")
	}

	app.apiServer = api.NewServer(
		app.noticeStore,
		app.runner,
		pinger,
		*cfg,
		logger.Named("api"),
	)

	return nil
}

func setupStorage(ctx context.Context, app *App) (syncer.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case "gcs":
		app.logger.Info("using GCS archive backend")
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.addCloser("gcs client", client.Close)
		blobStore, err := gcs.New(client, gcs.Config{
			Bucket: app.cfg.Storage.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Debug("GCS archive backend", zap.String("bucket", app.cfg.Storage.Bucket))
		return blobStore, nil
	default:
		app.logger.Info("using in-memory archive backend")
		return memorystorage.NewBlobStore(), nil
	}
}

// setupDatabase selects the notice store. It returns a readiness pinger when the
// store has a remote dependency.
func setupDatabase(ctx context.Context, app *App) (api.Pinger, error) {
	if app.cfg.Database.DSN == "" {
		app.logger.Warn("no DSN specified for database, notices are kept in memory")
		store := memorystorage.NewNoticeStore()
		app.noticeStore = store
		app.addCloser("notice store", func() error {
			store.Close()
			return nil
		})
		return nil, nil
	}
	if app.cfg.Database.Migrate {
		if err := runMigrations(ctx, app); err != nil {
			return nil, err
		}
	}
	store, err := pgstore.NewNoticeStore(ctx, pgstore.NoticeStoreConfig{
		DSN:      app.cfg.Database.DSN,
		Table:    app.cfg.Database.Table,
		MaxConns: app.cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("notice store init failed: %w", err)
	}
	app.noticeStore = store
	app.addCloser("notice store", func() error {
		store.Close()
		return nil
	})
	app.logger.Info("notice store initialized", zap.String("table", app.cfg.Database.Table))
	return store, nil
}

func runMigrations(ctx context.Context, app *App) error {
	if table := app.cfg.Database.Table; table != "" && table != pgstore.DefaultTable {
		app.logger.Warn("skipping migrations for custom table", zap.String("table", table))
		return nil
	}
	version, dirty, err := migrations.Run(ctx, app.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	app.logger.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func setupPublisher(ctx context.Context, app *App) (ingest.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.addCloser("pubsub client", client.Close)
	publisher := client.Publisher(app.cfg.PubSub.TopicName)
	app.addCloser("pubsub publisher", func() error {
		publisher.Stop()
		return nil
	})
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(publisher), nil
}

func setupCoordinator(ctx context.Context, app *App, archive syncer.BlobStore) (*syncer.Coordinator, error) {
	cfg := app.cfg
	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.RateLimit.RPS,
		Burst: cfg.RateLimit.Burst,
	})
	if cfg.RateLimit.RPS > 0 {
		app.logger.Info("rate limiter enabled",
			zap.Float64("rps", cfg.RateLimit.RPS),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
	} else {
		app.logger.Warn("rate limiting disabled")
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Board.UserAgent,
		Timeout:     cfg.BoardTimeout(),
		MaxBodySize: cfg.Board.MaxBodyBytes,
	}, limiter)

	boardClient := board.NewClient(fetcher, cfg.Board.BaseURL)
	imageFetcher, err := images.New(fetcher, cfg.Board.ImageOrigin)
	if err != nil {
		return nil, fmt.Errorf("image fetcher init failed: %w", err)
	}

	var backends []summarizer.Backend
	if cfg.Summarizer.APIKey == "" {
		app.logger.Warn("no summarizer api key configured, notices will be stored without summaries")
	} else {
		backends, err = summarizer.NewGeminiBackends(ctx, summarizer.GeminiConfig{
			APIKey:  cfg.Summarizer.APIKey,
			Models:  cfg.Summarizer.Models,
			BaseURL: cfg.Summarizer.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("summarizer init failed: %w", err)
		}
	}
	sum := summarizer.New(backends, app.logger.Named("summarizer"),
		summarizer.WithAttemptTimeout(cfg.SummarizerTimeout()))

	return syncer.New(
		boardClient,
		imageFetcher,
		sum,
		archive,
		syncer.Config{
			PageSize:      cfg.Board.PageSize,
			ArchivePrefix: cfg.Storage.Prefix,
		},
		app.logger.Named("syncer"),
	), nil
}
