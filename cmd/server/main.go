// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/lobbyhub/internal/auth"
	"github.com/jason-s-yu/lobbyhub/internal/cache"
	"github.com/jason-s-yu/lobbyhub/internal/config"
	"github.com/jason-s-yu/lobbyhub/internal/database"
	"github.com/jason-s-yu/lobbyhub/internal/handlers"
	"github.com/jason-s-yu/lobbyhub/internal/lobby"
	"github.com/jason-s-yu/lobbyhub/internal/memstore"
	"github.com/jason-s-yu/lobbyhub/internal/middleware"
	"github.com/jason-s-yu/lobbyhub/internal/reclaim"
	"github.com/sirupsen/logrus"
)

// backend is what both store implementations provide.
type backend interface {
	lobby.Store
	reclaim.Store
	handlers.LayoutSource
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store backend
	var health func(context.Context) error
	if cfg.DatabaseURL != "" {
		pg, err := database.Open(ctx, cfg.DatabaseURL, cfg.Fallbacks(), logger)
		if err != nil {
			logger.WithError(err).Fatal("postgres connection failed")
		}
		defer pg.Close()
		if cfg.EnsureSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				logger.WithError(err).Fatal("schema setup failed")
			}
			logger.Info("schema ensured")
		}
		store, health = pg, pg.Ping
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		store = memstore.New()
	}

	hub := handlers.NewRoomHub()
	publishers := cache.Fanout{hub}
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Fatal("redis connection failed")
		}
		defer rdb.Close()
		publishers = append(publishers, cache.NewPublisher(rdb, cfg.EventsQueueName))
		logger.WithField("queue", cfg.EventsQueueName).Info("publishing room events to redis")
	}

	sessions, err := loadSessions(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("auth setup failed")
	}

	coord := lobby.NewCoordinator(store, logger.WithField("component", "lobby"), lobby.Config{
		HostInactivity: cfg.HostInactivity,
		Publisher:      publishers,
	})
	reclaimer := reclaim.New(store, publishers, logger.WithField("component", "reclaim"))

	// Without Postgres no other process can reach the seats, so sweep here.
	if cfg.DatabaseURL == "" && cfg.ReclaimInterval > 0 {
		go reclaimer.Run(ctx, cfg.ReclaimInterval, reclaim.Options{
			GameID:    cfg.ReclaimGameID,
			OlderThan: cfg.ReclaimOlderThan,
		})
	}

	api := handlers.NewAPI(handlers.Deps{
		Coordinator: coord,
		Reclaimer:   reclaimer,
		Layouts:     store,
		Sessions:    sessions,
		Hub:         hub,
		Admins:      cfg.AdminOwnerIDs,
		Health:      health,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     middleware.LogMiddleware(logger)(api.Routes()),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"addr": srv.Addr, "env": cfg.Env}).Info("starting lobbyhub server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	logger.Info("server stopped")
}

// loadSessions reads the signing keys, or generates throwaway ones in
// development.
func loadSessions(cfg *config.Config, logger logrus.FieldLogger) (*auth.Sessions, error) {
	if cfg.JWTPrivateKeyPath != "" && cfg.JWTPublicKeyPath != "" {
		return auth.LoadSessions(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenExpireTime)
	}
	if !cfg.IsDevelopment() {
		return nil, errors.New("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH are required outside development")
	}
	logger.Warn("no JWT keys configured, generating ephemeral ones")
	return auth.NewSessions(cfg.TokenExpireTime)
}
