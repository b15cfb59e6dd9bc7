package exchange

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"arbot/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitVenuesSkipsVenueWithoutCredentials(t *testing.T) {
	t.Setenv("TEST_KRAKEN_KEY", "")
	t.Setenv("TEST_KRAKEN_SECRET", "")
	cfg := &config.Config{
		Symbol: "BTC/USD",
		Venues: []config.VenueConfig{
			{Name: "kraken", APIKeyEnv: "TEST_KRAKEN_KEY", SecretKeyEnv: "TEST_KRAKEN_SECRET"},
		},
	}

	venues, err := InitVenues(context.Background(), discardLogger(), cfg)
	assert.Nil(t, venues)
	assert.ErrorIs(t, err, ErrNoVenues)
}

func TestInitVenuesSkipsUnknownVenue(t *testing.T) {
	t.Setenv("TEST_VENUE_KEY", "key")
	t.Setenv("TEST_VENUE_SECRET", "secret")
	cfg := &config.Config{
		Symbol: "BTC/USD",
		Venues: []config.VenueConfig{
			{Name: "bitmart", APIKeyEnv: "TEST_VENUE_KEY", SecretKeyEnv: "TEST_VENUE_SECRET"},
		},
	}

	venues, err := InitVenues(context.Background(), discardLogger(), cfg)
	assert.Nil(t, venues)
	assert.ErrorIs(t, err, ErrNoVenues)
}
