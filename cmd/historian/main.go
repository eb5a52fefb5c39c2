// cmd/historian drains the session journal from Redis into the session_events table.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/partygames/internal/cache"
	"github.com/jason-s-yu/partygames/internal/config"
	"github.com/jason-s-yu/partygames/internal/database"
	"github.com/jason-s-yu/partygames/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	logger, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	defer pool.Close()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	h := historian.New(rdb, database.NewPostgres(pool), historian.Options{
		Queue:      cfg.HistorianQueue,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlush,
	}, logger)
	if err := h.Run(ctx); err != nil {
		logger.WithError(err).Error("historian stopped")
		os.Exit(1)
	}
}
