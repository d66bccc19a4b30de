package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicware/clinic-ops/internal/config"
	"github.com/clinicware/clinic-ops/internal/db"
	"github.com/clinicware/clinic-ops/internal/logging"
	"github.com/clinicware/clinic-ops/internal/reservation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("sweep-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("reaper_interval", cfg.ReaperInterval),
		zap.Duration("stale_interval", cfg.StaleInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.Connect(pgCtx, cfg.PostgresDSN, db.Options{MaxConns: 4})
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	repo := reservation.NewPgRepository(pgPool)
	sweeper := reservation.NewSweeper(repo, logger.Named("sweeper"),
		cfg.ReaperInterval, cfg.StaleInterval, cfg.StalePendingAge)

	sweeper.Run(rootCtx)

	logger.Info("sweep-worker stopped")
}
