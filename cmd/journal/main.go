// cmd/journal/main.go pops room events from the Redis queue and persists
// them to the room_events table.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/lobbyhub/internal/cache"
	"github.com/jason-s-yu/lobbyhub/internal/config"
	"github.com/jason-s-yu/lobbyhub/internal/database"
	"github.com/jason-s-yu/lobbyhub/internal/journal"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()
	if cfg.DatabaseURL == "" || cfg.RedisAddr == "" {
		logger.Fatal("DATABASE_URL and REDIS_ADDR are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.DatabaseURL, cfg.Fallbacks(), logger)
	if err != nil {
		logger.WithError(err).Fatal("postgres connection failed")
	}
	defer store.Close()
	if cfg.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Fatal("schema setup failed")
		}
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("redis connection failed")
	}
	defer rdb.Close()

	svc := journal.New(rdb, store, logger, journal.Config{
		Queue:         cfg.EventsQueueName,
		BatchSize:     cfg.JournalBatchSize,
		FlushInterval: cfg.JournalFlushInterval,
		MaxPending:    cfg.JournalMaxPending,
	})
	svc.Run(ctx)
}
