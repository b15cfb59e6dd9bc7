package exchange

import (
	"context"
	"errors"

	"arbot/internal/model"
)

// Client is the uniform capability surface every venue adapter provides.
// Each call may fail independently; callers treat failures as isolated,
// per-venue conditions.
type Client interface {
	Name() string

	// LoadInstrument resolves the venue-native symbol for the given hint and
	// verifies the instrument is tradable. Returns ErrInstrumentNotAvailable
	// when the venue does not list it.
	LoadInstrument(ctx context.Context, symbolHint string) (string, error)

	// FetchTopOfBook returns the current best bid/ask. A missing book side is
	// returned as nil, never as zero.
	FetchTopOfBook(ctx context.Context, symbol string) (model.TopOfBook, error)

	// FetchBalance returns the available amount of the given currency.
	FetchBalance(ctx context.Context, currency string) (float64, error)

	// PlaceLimitOrder submits a limit order and returns the exchange-assigned
	// order id.
	PlaceLimitOrder(ctx context.Context, symbol string, side model.Side, amount, price float64) (string, error)

	// FetchOrderStatus returns the current status of a previously placed order.
	FetchOrderStatus(ctx context.Context, orderID, symbol string) (model.OrderStatus, error)

	// CancelOrder cancels a previously placed order.
	CancelOrder(ctx context.Context, orderID, symbol string) error

	Close() error
}

// Credentials reference the API key pair for a venue.
type Credentials struct {
	Key    string
	Secret string
}

var (
	// ErrInstrumentNotAvailable is returned by LoadInstrument when the venue
	// does not list the instrument.
	ErrInstrumentNotAvailable = errors.New("instrument not available on venue")

	// ErrNoQuote is returned by FetchTopOfBook when no fresh quote has been
	// received from the venue's stream yet.
	ErrNoQuote = errors.New("no fresh quote available")

	// ErrNoVenues is returned by InitVenues when zero venues could be
	// initialized. This is fatal at startup.
	ErrNoVenues = errors.New("no venues initialized")
)
