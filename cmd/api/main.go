package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/ghostauditor/backend/internal/auth"
	"github.com/ghostauditor/backend/internal/billing"
	"github.com/ghostauditor/backend/internal/catalog"
	"github.com/ghostauditor/backend/internal/config"
	"github.com/ghostauditor/backend/internal/devices"
	"github.com/ghostauditor/backend/internal/jobs"
	"github.com/ghostauditor/backend/internal/ledger"
	"github.com/ghostauditor/backend/internal/migrations"
	"github.com/ghostauditor/backend/internal/pricing"
	"github.com/ghostauditor/backend/internal/repository"
	"github.com/ghostauditor/backend/internal/router"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(os.Getenv("GHOST_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("cannot reach PostgreSQL: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	if err := migrate(ctx, cfg.Database.URL); err != nil {
		return fmt.Errorf("schema migrations: %w", err)
	}
	riverMigrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := riverMigrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	logger.Info("migrations applied")

	// Repositories
	accountRepo := repository.NewAccountRepo(pool)
	ledgerRepo := repository.NewLedgerRepo(pool)
	groupRepo := repository.NewGroupRepo(pool)
	scenarioRepo := repository.NewScenarioRepo(pool)
	quoteRepo := repository.NewQuoteRepo(pool)
	deviceRepo := repository.NewDeviceRepo(pool)

	// Optional Redis price cache
	var costCache pricing.CostCache
	if cfg.Redis.Enabled {
		cache, err := pricing.NewCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Pricing.CacheTTL)
		if err != nil {
			logger.Warn("redis unavailable, price cache disabled", "error", err)
		} else {
			costCache = cache
			logger.Info("redis price cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	// Services
	resolver := pricing.NewResolver(groupRepo, scenarioRepo, costCache, cfg.Pricing.FallbackCost, cfg.Pricing.AllIncludesInactive)
	ledgerSvc := ledger.NewService(accountRepo, ledgerRepo)
	deviceSvc := devices.NewService(deviceRepo, accountRepo, pool, cfg.Devices.MaxPerAccount)
	authSvc := auth.NewService(accountRepo, deviceSvc, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	billingSvc := billing.NewService(pool, quoteRepo, ledgerSvc, resolver, scenarioRepo, groupRepo, cfg.Billing.QuoteTTL)
	catalogSvc := catalog.NewService(scenarioRepo, groupRepo, resolver)

	// Background jobs
	workers := river.NewWorkers()
	river.AddWorker(workers, jobs.NewSweepExpiredQuotesWorker(quoteRepo, logger))
	river.AddWorker(workers, jobs.NewKeepAlivePingWorker(pool, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 5},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.Billing.SweepInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return jobs.SweepExpiredQuotesArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
			river.NewPeriodicJob(
				river.PeriodicInterval(cfg.Billing.KeepAliveInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return jobs.KeepAlivePingArgs{}, nil
				},
				nil,
			),
		},
	})
	if err != nil {
		return fmt.Errorf("create river client: %w", err)
	}

	// Handlers
	h := router.Handlers{
		Auth:    auth.NewHandler(authSvc, logger),
		Ledger:  ledger.NewHandler(ledgerSvc, pool, logger),
		Catalog: catalog.NewHandler(catalogSvc, logger),
		Billing: billing.NewHandler(billingSvc, logger),
		Devices: devices.NewHandler(deviceSvc, logger),
	}
	mux := router.New(h, authSvc, accountRepo)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("start river client: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := riverClient.Stop(shutdownCtx); err != nil {
		logger.Warn("river client stop", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}

// migrate applies the embedded goose migrations over a database/sql
// connection; the pgx pool is kept for the application itself.
func migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
