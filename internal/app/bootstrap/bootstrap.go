package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	votingledger "voteledger/contexts/governance/voting-ledger"
	firestoreadapter "voteledger/contexts/governance/voting-ledger/adapters/firestore"
	postgresadapter "voteledger/contexts/governance/voting-ledger/adapters/postgres"
	workerapp "voteledger/contexts/governance/voting-ledger/application/workers"
	"voteledger/internal/platform/config"
	"voteledger/internal/platform/db"
	"voteledger/internal/platform/httpserver"
	"voteledger/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server    *httpserver.Server
	postgres  *db.Postgres
	firestore *firestore.Client
	logger    *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	firestore    *firestore.Client
	outboxRelay  *workerapp.OutboxRelay
	tallySync    workerapp.TallySync
	consume      bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	app := &APIApp{logger: logger}
	var module votingledger.Module

	switch cfg.StoreBackend {
	case config.BackendMemory:
		module = votingledger.NewInMemoryModule(logger)

	case config.BackendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required")
		}
		pg, err := db.Connect(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		app.postgres = pg

		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := migrate(repo); err != nil {
			return nil, err
		}
		module = votingledger.NewModule(votingledger.Dependencies{
			Polls:      repo,
			Candidates: repo,
			Votes:      repo,
			Outbox:     repo,
			Clock:      postgresadapter.SystemClock{},
			IDGen:      postgresadapter.UUIDGenerator{},
			Logger:     logger,
		})

	case config.BackendFirestore:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		client, err := db.ConnectFirestore(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		app.firestore = client

		// No outbox on this backend; events flow through the tally sweep
		// instead, so the module needs no clock or id source.
		store := firestoreadapter.NewStore(client, logger)
		module = votingledger.NewModule(votingledger.Dependencies{
			Polls:      store,
			Candidates: store,
			Votes:      store,
			Logger:     logger,
		})

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	app.server = httpserver.New(module, cfg.JWTSecret, cfg.CORSOrigins, logger, normalizeAddr(cfg.HTTPPort))
	return app, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	app := &WorkerApp{
		pollInterval: cfg.WorkerInterval,
		logger:       logger,
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required")
		}
		pg, err := db.Connect(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		app.postgres = pg

		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := migrate(repo); err != nil {
			return nil, err
		}
		kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
		if err != nil {
			return nil, err
		}
		app.outboxRelay = &workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		}
		app.tallySync = workerapp.TallySync{
			Subscriber:    kafka,
			Polls:         repo,
			Candidates:    repo,
			Votes:         repo,
			ConsumerGroup: "voting-ledger-tally-cg",
			Logger:        logger,
		}
		app.consume = cfg.EnableTallyConsumer

	case config.BackendFirestore:
		// No outbox on this backend, so the worker runs sweep cycles only.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		client, err := db.ConnectFirestore(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		app.firestore = client

		store := firestoreadapter.NewStore(client, logger)
		app.tallySync = workerapp.TallySync{
			Polls:      store,
			Candidates: store,
			Votes:      store,
			Logger:     logger,
		}

	case config.BackendMemory:
		return nil, errors.New("worker requires a durable store backend")

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	return app, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.firestore != nil {
		_ = a.firestore.Close()
	}
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.consume {
		if err := w.tallySync.Start(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if w.outboxRelay != nil {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		if err := w.tallySync.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.firestore != nil {
		_ = w.firestore.Close()
	}
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func migrate(repo *postgresadapter.Repository) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return repo.Migrate(ctx)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
