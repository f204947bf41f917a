// cmd/reclaimer/main.go frees seats held by participants that are gone,
// finished or silent, once or on an interval.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/lobbyhub/internal/cache"
	"github.com/jason-s-yu/lobbyhub/internal/config"
	"github.com/jason-s-yu/lobbyhub/internal/database"
	"github.com/jason-s-yu/lobbyhub/internal/reclaim"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	once := flag.Bool("once", false, "run a single sweep, print its report and exit")
	gameID := flag.String("game", cfg.ReclaimGameID, "only sweep rooms of this game")
	olderThan := flag.Duration("older-than", cfg.ReclaimOlderThan, "silence window before an active seat is stale")
	interval := flag.Duration("interval", cfg.ReclaimInterval, "time between sweeps")
	flag.Parse()

	logger := cfg.NewLogger()
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.DatabaseURL, cfg.Fallbacks(), logger)
	if err != nil {
		logger.WithError(err).Fatal("postgres connection failed")
	}
	defer store.Close()

	var pub reclaim.Publisher
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Fatal("redis connection failed")
		}
		defer rdb.Close()
		pub = cache.NewPublisher(rdb, cfg.EventsQueueName)
	}

	r := reclaim.New(store, pub, logger)
	opts := reclaim.Options{GameID: *gameID, OlderThan: *olderThan}

	if *once {
		report, err := r.ReleaseStaleSlots(ctx, opts)
		if err != nil {
			logger.WithError(err).Fatal("sweep failed")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}

	if *interval <= 0 {
		logger.Fatal("interval must be positive")
	}
	logger.WithFields(logrus.Fields{
		"interval":   *interval,
		"older_than": *olderThan,
		"game_id":    *gameID,
	}).Info("reclaimer started")
	r.Run(ctx, *interval, opts)
	logger.Info("reclaimer stopped")
}
