package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/labubou/TAConnect-sub000/internal/app"
	"github.com/labubou/TAConnect-sub000/internal/booking"
	"github.com/labubou/TAConnect-sub000/internal/config"
	"github.com/labubou/TAConnect-sub000/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Failed to resolve timezone", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to reach database", zap.Error(err))
	}

	migrator, err := app.NewMigrator(pool, "migrations", logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	// The booking and definition services are the library surface embedded
	// by the API collaborator; this process owns the schema and keeps the
	// completion sweeper running.
	resRepo := repository.NewReservationRepository(pool)
	notifier := booking.NewLogNotifier(logger)
	sweeper := booking.NewSweeper(resRepo, notifier, logger)

	runner := app.NewSweepRunner(sweeper, cfg.SweepInterval(), logger)
	runner.Start(ctx)
	defer runner.Stop()

	logger.Info("TAConnect core started",
		zap.String("environment", cfg.Environment),
		zap.String("timezone", loc.String()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
}
