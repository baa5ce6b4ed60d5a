package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"8765"`

	// DatabaseURL wins when set; otherwise the URL is composed from the
	// individual PG* variables.
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" default:"localhost"`
	PGDatabase  string `env:"PGDATABASE" default:"carten"`
	PGUser      string `env:"PGUSER" default:"postgres"`
	PGPassword  string `env:"PGPASSWORD"`
	PGPort      string `env:"PGPORT" default:"5432"`

	PollInterval       time.Duration `env:"POLL_INTERVAL" default:"1s"`
	CommentCatchup     int           `env:"COMMENT_CATCHUP_LIMIT" default:"50"`
	DBConnectAttempts  int           `env:"DB_CONNECT_ATTEMPTS" default:"30"`
	DBConnectInterval  time.Duration `env:"DB_CONNECT_INTERVAL" default:"1s"`
	MaxClientsPerGroup int           `env:"MAX_CLIENTS_PER_GROUP" default:"500"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DatabaseDSN returns the connection URL for the Postgres pool.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PGUser, c.PGPassword),
		Host:   c.PGHost + ":" + c.PGPort,
		Path:   "/" + c.PGDatabase,
	}
	return u.String()
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" && cfg.PGPassword == "" {
		return fmt.Errorf("DATABASE_URL or PGPASSWORD is required")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.CommentCatchup < 0 {
		return fmt.Errorf("COMMENT_CATCHUP_LIMIT must not be negative, got %d", cfg.CommentCatchup)
	}
	if cfg.DBConnectAttempts < 1 {
		return fmt.Errorf("DB_CONNECT_ATTEMPTS must be at least 1, got %d", cfg.DBConnectAttempts)
	}
	return nil
}
