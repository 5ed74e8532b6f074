package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"orderdesk/internal/config"
	"orderdesk/internal/db"
	"orderdesk/internal/logging"
	"orderdesk/internal/seed"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New("orderdesk-seed", cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	if err := seed.Apply(ctx, pool, logger); err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}
}
