package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baselume-ledger/internal/auth"
	"github.com/baselume-ledger/internal/config"
	"github.com/baselume-ledger/internal/dayclock"
	"github.com/baselume-ledger/internal/domain"
	"github.com/baselume-ledger/internal/handler"
	"github.com/baselume-ledger/internal/kafka"
	"github.com/baselume-ledger/internal/ledger"
	"github.com/baselume-ledger/internal/metrics"
	"github.com/baselume-ledger/internal/postgres"
	"github.com/baselume-ledger/internal/redis"
	"github.com/baselume-ledger/internal/service"
	"github.com/baselume-ledger/internal/websocket"
	"github.com/baselume-ledger/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Journal: PostgreSQL when enabled, otherwise state lives only in memory
	var journal interface {
		ledger.Journal
		Load(ctx context.Context) (*ledger.Snapshot, error)
	} = ledger.NewMemoryJournal()
	var pgJournal *postgres.Journal
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		pgJournal, err = postgres.NewJournal(ctx, &cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer pgJournal.Close()

		if err := pgJournal.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		journal = pgJournal
	} else {
		logger.Warn("postgres disabled, ledger state will not survive a restart")
	}

	owner := domain.MustParseAddress(cfg.Ledger.Owner)
	submitters := make([]domain.Address, 0, len(cfg.Ledger.Submitters))
	for _, s := range cfg.Ledger.Submitters {
		submitters = append(submitters, domain.MustParseAddress(s))
	}

	l := ledger.New(ledger.Options{
		Owner:      owner,
		Submitters: submitters,
		BaseURI:    cfg.Ledger.BaseURI,
		Journal:    journal,
		Clock:      dayclock.SystemClock{},
		Logger:     logger,
	})

	// Replay the journal before serving traffic
	snap, err := journal.Load(ctx)
	if err != nil {
		logger.Error("failed to load journal", "error", err)
		os.Exit(1)
	}
	if err := l.Restore(snap); err != nil {
		logger.Error("failed to restore ledger", "error", err)
		os.Exit(1)
	}
	logger.Info("ledger restored",
		"entries", l.TotalEntries(),
		"players", l.TotalPlayers(),
		"tokens", l.TotalSupply(),
		"day", l.CurrentDay(),
	)

	if cfg.Ledger.Minter != "" {
		linkMinter(ctx, l, owner, domain.MustParseAddress(cfg.Ledger.Minter), logger)
	}

	l.Subscribe(metrics.Observer{})
	metrics.CurrentDay.Set(float64(l.CurrentDay()))

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(l, cfg.Leaderboard.DefaultLimit, logger)
	go wsHub.Run()
	l.Subscribe(wsHub)

	svc := service.NewLedgerService(l, &cfg.Leaderboard, logger)
	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	httpHandler := handler.NewHandler(svc, wsHub, authenticator, cfg.Server.AllowedOrigins, logger)
	if pgJournal != nil {
		httpHandler.AddReadinessCheck("postgres", pgJournal)
	}

	// Redis projection and the worker that keeps it aligned with the ledger
	var syncWorker *worker.SyncWorker
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		projection, err := redis.NewProjection(ctx, &cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer projection.Close()
		l.Subscribe(projection)
		httpHandler.AddReadinessCheck("redis", projection)

		syncWorker = worker.NewSyncWorker(l, projection, &cfg.Sync, logger)
		if errs := syncWorker.RunOnce(ctx); errs > 0 {
			logger.Warn("initial projection sync incomplete", "errors", errs)
		}
		if cfg.Sync.Enabled {
			if err := syncWorker.Start(ctx); err != nil {
				logger.Error("failed to start sync worker", "error", err)
				os.Exit(1)
			}
		}
	}

	var finalizer *worker.Finalizer
	if cfg.Finalizer.Enabled {
		finalizer = worker.NewFinalizer(l, &cfg.Finalizer, logger)
		if err := finalizer.Start(ctx); err != nil {
			logger.Error("failed to start finalizer", "error", err)
			os.Exit(1)
		}
	}

	// Kafka consumer for pipeline score ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, svc, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			kafkaConsumer = nil
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop intake first so no write races the journal close
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if finalizer != nil {
		if err := finalizer.Stop(); err != nil {
			logger.Error("failed to stop finalizer", "error", err)
		}
	}

	if syncWorker != nil {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	wsHub.Stop()

	logger.Info("server stopped")
}

// linkMinter links the configured minter once. A ledger restored with a
// different minter keeps it.
func linkMinter(ctx context.Context, l *ledger.Ledger, owner, minter domain.Address, logger *slog.Logger) {
	err := l.SetChampionMinter(ctx, owner, minter)
	switch {
	case err == nil:
		logger.Info("champion minter linked", "minter", minter)
	case errors.Is(err, domain.ErrMinterAlreadySet):
		logger.Warn("configured minter ignored, ledger already linked",
			"configured", minter,
			"linked", l.ChampionMinter(),
		)
	default:
		logger.Error("failed to link champion minter", "error", err)
		os.Exit(1)
	}
}
