package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbot/internal/config"
	"arbot/internal/exchange"
	"arbot/internal/model"
)

type scriptedClient struct {
	name    string
	tob     model.TopOfBook
	balance float64
}

func (s *scriptedClient) Name() string { return s.name }

func (s *scriptedClient) LoadInstrument(ctx context.Context, symbolHint string) (string, error) {
	return symbolHint, nil
}

func (s *scriptedClient) FetchTopOfBook(ctx context.Context, symbol string) (model.TopOfBook, error) {
	return s.tob, nil
}

func (s *scriptedClient) FetchBalance(ctx context.Context, currency string) (float64, error) {
	return s.balance, nil
}

func (s *scriptedClient) PlaceLimitOrder(ctx context.Context, symbol string, side model.Side, amount, price float64) (string, error) {
	return "order-" + s.name, nil
}

func (s *scriptedClient) FetchOrderStatus(ctx context.Context, orderID, symbol string) (model.OrderStatus, error) {
	return model.OrderClosed, nil
}

func (s *scriptedClient) CancelOrder(ctx context.Context, orderID, symbol string) error {
	return nil
}

func (s *scriptedClient) Close() error { return nil }

type memoryRepo struct {
	mu     sync.Mutex
	trades []model.TradeRecord
}

func (r *memoryRepo) Migrate(ctx context.Context) error { return nil }

func (r *memoryRepo) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, trade)
	return nil
}

func (r *memoryRepo) Close() {}

func (r *memoryRepo) recorded() []model.TradeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TradeRecord(nil), r.trades...)
}

func TestLiveCycleExecutesAndRecordsTrade(t *testing.T) {
	cfg := &config.Config{
		Symbol:            "BTC/USD",
		TradeCurrency:     "USD",
		MinProfitPercent:  0.5,
		TradeAmount:       1,
		MaxTradeAmount:    2,
		CheckInterval:     10 * time.Millisecond,
		OrderTimeout:      100 * time.Millisecond,
		OrderPollInterval: time.Millisecond,
		Venues: []config.VenueConfig{
			{Name: "alpha", TakerFee: 0.001},
			{Name: "beta", TakerFee: 0.001},
		},
	}

	venues := map[string]*exchange.Venue{
		"alpha": {
			Name:     "alpha",
			Symbol:   "BTCUSD",
			TakerFee: 0.001,
			Client:   &scriptedClient{name: "alpha", balance: 1e6, tob: model.TopOfBook{Bid: model.Float(99.9), Ask: model.Float(100)}},
		},
		"beta": {
			Name:     "beta",
			Symbol:   "BTCUSD",
			TakerFee: 0.001,
			Client:   &scriptedClient{name: "beta", balance: 1e6, tob: model.TopOfBook{Bid: model.Float(101), Ask: model.Float(101.1)}},
		},
	}

	repo := &memoryRepo{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := New(logger, cfg, venues, repo).Run(ctx)
	require.NoError(t, err)

	trades := repo.recorded()
	require.NotEmpty(t, trades)
	first := trades[0]
	assert.Equal(t, "alpha", first.BuyVenue)
	assert.Equal(t, "beta", first.SellVenue)
	assert.Equal(t, "succeeded", first.Outcome)
	assert.InDelta(t, 0.799, first.Profit, 0.005)
}
