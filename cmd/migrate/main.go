package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"orderdesk/internal/config"
	"orderdesk/internal/db"
	"orderdesk/internal/logging"
	"orderdesk/internal/migrate"
)

func main() {
	var (
		rollback    int
		showVersion bool
	)
	flag.IntVar(&rollback, "rollback", 0, "Roll back this many migrations instead of applying")
	flag.BoolVar(&showVersion, "version", false, "Print the current schema version and exit")
	flag.Parse()

	cfg := config.FromEnv()
	logger, err := logging.New("orderdesk-migrate", cfg.LogLevel, cfg.LogDevelopment)
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

	switch {
	case showVersion:
		version, dirty, err := migrate.Version(ctx, pool)
		if err != nil {
			logger.Fatal("read schema version", zap.Error(err))
		}
		logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	case rollback > 0:
		if err := migrate.Rollback(ctx, pool, rollback); err != nil {
			logger.Fatal("roll back migrations", zap.Int("steps", rollback), zap.Error(err))
		}
		logger.Info("migrations rolled back", zap.Int("steps", rollback))
	default:
		if err := migrate.Apply(ctx, pool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}
}
