package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/app"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/broadcast"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/config"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/logging"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/postgres"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/server"
	"github.com/JamesDimonaco/Carten-Location-Tracker/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.DBConnectAttempts)*cfg.DBConnectInterval+10*time.Second)
	defer cancel()

	// The database container may still be starting when we do.
	pool, err := postgres.ConnectWithRetry(ctx, cfg.DatabaseDSN(), cfg.DBConnectAttempts, cfg.DBConnectInterval)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func runGracefulShutdown(srv *server.Server, pollerCancel context.CancelFunc, broadcaster *broadcast.Broadcaster) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		pollerCancel()
		broadcaster.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	pool := setupDB(cfg)
	defer pool.Close()

	locations := postgres.NewLocationRepo(pool)
	comments := postgres.NewCommentRepo(pool)

	broadcaster := broadcast.New(locations, comments, cfg.CommentCatchup, cfg.MaxClientsPerGroup, clock)

	poller := app.NewPoller(locations, broadcaster, cfg.PollInterval, clock)
	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	go poller.Run(pollerCtx)

	srv := server.NewServer(cfg, broadcaster, locations, comments, pool)

	done := runGracefulShutdown(srv, pollerCancel, broadcaster)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
