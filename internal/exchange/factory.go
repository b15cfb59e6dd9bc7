package exchange

import (
	"fmt"
	"log/slog"
)

// NewClient creates a new exchange client based on the given name and credentials.
func NewClient(name string, logger *slog.Logger, creds Credentials) (Client, error) {
	switch name {
	case "kraken":
		return NewKrakenClient(logger, creds), nil
	case "binance":
		return NewBinanceClient(logger, creds), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}
