package exchange

import (
	"context"
	"log/slog"
	"os"

	"arbot/internal/config"
)

// Venue is one initialized trading venue: the adapter plus the static,
// immutable per-venue facts resolved at startup.
type Venue struct {
	Name     string
	Client   Client
	Symbol   string
	TakerFee float64
	MakerFee float64
}

// InitVenues creates and verifies a client for every configured venue.
// Venues with missing credentials or an unavailable instrument are skipped
// with a warning; zero usable venues is fatal and returns ErrNoVenues.
func InitVenues(ctx context.Context, logger *slog.Logger, cfg *config.Config) (map[string]*Venue, error) {
	venues := make(map[string]*Venue)
	for _, vc := range cfg.Venues {
		creds := Credentials{
			Key:    os.Getenv(vc.APIKeyEnv),
			Secret: os.Getenv(vc.SecretKeyEnv),
		}
		if creds.Key == "" || creds.Secret == "" {
			logger.Warn("API keys not found, skipping venue", "venue", vc.Name)
			continue
		}

		client, err := NewClient(vc.Name, logger, creds)
		if err != nil {
			logger.Error("failed to create venue client", "venue", vc.Name, "error", err)
			continue
		}

		symbol, err := client.LoadInstrument(ctx, cfg.VenueSymbol(vc.Name))
		if err != nil {
			logger.Error("failed to load instrument, skipping venue",
				"venue", vc.Name, "symbol", cfg.VenueSymbol(vc.Name), "error", err)
			_ = client.Close()
			continue
		}

		venues[vc.Name] = &Venue{
			Name:     vc.Name,
			Client:   client,
			Symbol:   symbol,
			TakerFee: vc.TakerFee,
			MakerFee: vc.MakerFee,
		}
		logger.Info("initialized venue", "venue", vc.Name, "symbol", symbol)
	}

	if len(venues) == 0 {
		return nil, ErrNoVenues
	}
	return venues, nil
}

// CloseVenues releases every venue connection. Safe to call on the error path
// out of the main loop.
func CloseVenues(logger *slog.Logger, venues map[string]*Venue) {
	for name, v := range venues {
		if err := v.Client.Close(); err != nil {
			logger.Error("failed to close venue client", "venue", name, "error", err)
		}
	}
	logger.Info("all venue connections closed")
}
