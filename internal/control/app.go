package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pressly/goose/v3"

	"github.com/scryhq/ingestor/internal/core/config"
	"github.com/scryhq/ingestor/internal/infra/kafka"
	"github.com/scryhq/ingestor/internal/infra/queue"
	"github.com/scryhq/ingestor/internal/infra/storage/postgres"
	"github.com/scryhq/ingestor/internal/ingest/adapter"
	"github.com/scryhq/ingestor/internal/ingest/breaker"
	"github.com/scryhq/ingestor/internal/ingest/orchestrator"
	"github.com/scryhq/ingestor/internal/ingest/ratelimit"
	"github.com/scryhq/ingestor/internal/server"
)

// App owns the ingestion service's components and their lifecycle.
type App struct {
	cfg         *config.AppConfig
	db          *postgres.DB
	records     *postgres.RecordRepo
	queueClient *queue.Client
	worker      *queue.Worker
	publisher   *kafka.Publisher
	limiter     *ratelimit.Limiter
	breakers    *breaker.Registry
	registry    *adapter.Registry
	orch        *orchestrator.Orchestrator
	server      *server.Server
	log         *slog.Logger
}

// NewApp creates the application with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {
	app := &App{cfg: cfg, log: slog.Default()}

	// 1. Storage (optional)
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Goose needs the raw *sql.DB underneath sqlx.
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		app.db = db
		app.records = postgres.NewRecordRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		slog.Info("No database configured, ingestion records are not persisted")
	}

	// 2. Task queue (optional)
	if cfg.Queue.URL != "" {
		client, err := queue.NewClient(cfg.Queue.Client())
		if err != nil {
			slog.Warn("Failed to connect to Redis, async ingestion disabled", "error", err)
		} else {
			app.queueClient = client
		}
	}

	// 3. Event publisher
	app.publisher = kafka.NewPublisher(cfg.Kafka)

	// 4. Core pipeline
	policy, err := cfg.Retry.Policy()
	if err != nil {
		return nil, fmt.Errorf("invalid retry defaults: %w", err)
	}
	app.breakers = breaker.NewRegistry(cfg.Breaker)
	app.registry = adapter.NewDefaultRegistry()

	var store orchestrator.Store
	if app.records != nil {
		store = app.records
	}
	app.orch = orchestrator.New(
		cfg.Orchestrator,
		app.registry,
		app.breakers,
		policy,
		store,
		app.publisher,
	)

	// 5. Queue worker
	if app.queueClient != nil {
		app.worker = queue.NewWorker(cfg.Queue.Worker(), app.queueClient, app.orch)
	}

	// 6. Request boundary
	if cfg.RateLimit.Enabled {
		app.limiter = ratelimit.NewLimiter(cfg.RateLimit)
	}

	checks := map[string]server.HealthChecker{}
	if app.db != nil {
		checks["postgres"] = app.db.Health
	}
	if app.queueClient != nil {
		checks["redis"] = app.queueClient.Health
	}
	if cfg.Kafka.Enabled {
		checks["kafka"] = app.publisher.Health
	}

	var enqueuer server.Enqueuer
	if app.queueClient != nil {
		enqueuer = app.queueClient
	}
	app.server = server.NewServer(
		cfg.Server,
		app.orch,
		app.registry,
		enqueuer,
		app.limiter,
		checks,
	)

	return app, nil
}

// Start starts the app and all its components.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("API server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	if a.limiter != nil {
		go a.limiter.Sweep(ctx)
	}
	if a.worker != nil {
		go func() {
			if err := a.worker.Run(ctx); err != nil {
				a.log.Error("Queue worker failed", "error", err)
			}
		}()
	}

	a.log.Info("Ingestion service started",
		"port", a.cfg.Server.Port,
		"adapters", a.registry.List(),
		"queue", a.queueClient != nil,
		"database", a.db != nil,
		"events", a.cfg.Kafka.Enabled)
	return nil
}

// Stop stops the app.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping ingestion service...")

	if a.queueClient != nil {
		if err := a.queueClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("Failed to close Kafka publisher", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}

	return a.server.Stop(ctx)
}
