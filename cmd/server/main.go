package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MiSArch/shoppingcart/internal/app"
	"github.com/MiSArch/shoppingcart/internal/config"
	"github.com/MiSArch/shoppingcart/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Startup facts are logged before wiring so a hang in NewApp is
	// diagnosable from the log alone.
	log := logger.New("shoppingcart-service", cfg.LogLevel)
	log.Info("starting shoppingcart service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("repository_driver", cfg.RepositoryDriver),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// SIGINT and SIGTERM cancel the context; Run drains in-flight work
	// before returning.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("shoppingcart service stopped")
}
