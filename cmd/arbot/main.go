package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"arbot/internal/app"
	"arbot/internal/config"
	"arbot/internal/database"
	"arbot/internal/exchange"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("arbot: %v", err)
	}
}

func run() error {
	// Venue API credentials come from the environment; a .env file is
	// optional and its absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	venues, err := exchange.InitVenues(ctx, logger, &cfg)
	if err != nil {
		return err
	}
	// Venue connections must be released on every exit path, including a
	// failure out of the decision loop.
	defer exchange.CloseVenues(logger, venues)

	var repo database.Repository
	if cfg.Database.Host != "" {
		pgRepo, err := database.NewPostgresRepository(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pgRepo.Close()
		if err := pgRepo.Migrate(ctx); err != nil {
			return err
		}
		repo = pgRepo
	} else {
		logger.Warn("no database configured, trades will not be persisted")
	}

	logger.Info("starting live arbitrage engine",
		"symbol", cfg.Symbol, "venues", len(venues), "check_interval", cfg.CheckInterval)
	return app.New(logger, &cfg, venues, repo).Run(ctx)
}
