package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration shared by the lobbyhub binaries.
type Config struct {
	Port      string `env:"PORT"       envDefault:"8080"`
	Env       string `env:"ENV"        envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "text" or "json"

	// Postgres; empty runs the server on the in-memory store.
	DatabaseURL    string            `env:"DATABASE_URL"`
	EnsureSchema   bool              `env:"ENSURE_SCHEMA"   envDefault:"false"`
	TableFallbacks map[string]string `env:"TABLE_FALLBACKS" envSeparator:"," envKeyValSeparator:"="`

	// Redis event queue; empty disables publishing.
	RedisAddr       string `env:"REDIS_ADDR"`
	RedisDB         int    `env:"REDIS_DB"          envDefault:"0"`
	EventsQueueName string `env:"EVENTS_QUEUE_NAME" envDefault:"lobbyhub_room_events"`

	// Auth
	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH"`
	TokenExpireTime   time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"0s"` // 0 means no exp claim
	AdminOwnerIDs     []string      `env:"ADMIN_OWNER_IDS"   envSeparator:","`

	// Lobby and reclaimer
	HostInactivity   time.Duration `env:"HOST_INACTIVITY"    envDefault:"3m"`
	ReclaimOlderThan time.Duration `env:"RECLAIM_OLDER_THAN" envDefault:"15m"`
	ReclaimInterval  time.Duration `env:"RECLAIM_INTERVAL"   envDefault:"1m"`
	ReclaimGameID    string        `env:"RECLAIM_GAME_ID"`

	// Journal
	JournalBatchSize     int           `env:"JOURNAL_BATCH_SIZE"     envDefault:"20"`
	JournalFlushInterval time.Duration `env:"JOURNAL_FLUSH_INTERVAL" envDefault:"500ms"`
	JournalMaxPending    int           `env:"JOURNAL_MAX_PENDING"    envDefault:"1000"`
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required in production")
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Fallbacks expands TABLE_FALLBACKS ("rooms=legacy_rooms|rooms_v1,...")
// into ordered candidate lists per logical table.
func (c *Config) Fallbacks() map[string][]string {
	out := make(map[string][]string, len(c.TableFallbacks))
	for logical, names := range c.TableFallbacks {
		for _, name := range strings.Split(names, "|") {
			if name = strings.TrimSpace(name); name != "" {
				out[strings.TrimSpace(logical)] = append(out[strings.TrimSpace(logical)], name)
			}
		}
	}
	return out
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
