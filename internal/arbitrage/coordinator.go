package arbitrage

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc"

	"arbot/internal/exchange"
	"arbot/internal/model"
)

// State of an opportunity being driven through execution.
type State string

const (
	StatePending    State = "pending"
	StateBuyPlaced  State = "buy_placed"
	StateBothPlaced State = "both_placed"
	StateMonitoring State = "monitoring"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateAborted    State = "aborted"
)

// Terminal reports whether the state is one of the three terminal outcomes.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateAborted
}

// Coordinator drives one opportunity through balance verification, two-leg
// placement, compensating cancellation, and fill monitoring. One opportunity
// is executed to completion before the next decision cycle begins.
type Coordinator struct {
	logger        *slog.Logger
	monitor       *Monitor
	baseCurrency  string
	quoteCurrency string
}

// NewCoordinator creates a Coordinator. baseCurrency and quoteCurrency are
// the two legs of the canonical instrument symbol.
func NewCoordinator(logger *slog.Logger, monitor *Monitor, baseCurrency, quoteCurrency string) *Coordinator {
	return &Coordinator{
		logger:        logger,
		monitor:       monitor,
		baseCurrency:  baseCurrency,
		quoteCurrency: quoteCurrency,
	}
}

// Execute runs the state machine for one opportunity and returns its terminal
// state. Failures at venue-call granularity are logged and converted to a
// terminal outcome; they never propagate.
func (c *Coordinator) Execute(ctx context.Context, buy, sell *exchange.Venue, opp model.Opportunity) State {
	// Pending: best-effort balance verification on both legs. Balances may
	// change between this check and placement; a later placement failure is
	// handled by the compensation path, not here.
	cost := opp.BuyPrice * opp.Amount * (1 + buy.TakerFee)
	if !c.hasBalance(ctx, buy, c.quoteCurrency, cost) ||
		!c.hasBalance(ctx, sell, c.baseCurrency, opp.Amount) {
		c.logger.Warn("insufficient balance, aborting opportunity",
			"buy_venue", buy.Name, "sell_venue", sell.Name)
		return StateAborted
	}

	buyOrderID, err := buy.Client.PlaceLimitOrder(ctx, buy.Symbol, model.SideBuy, opp.Amount, opp.BuyPrice)
	if err != nil {
		c.logger.Error("failed to place buy order", "venue", buy.Name, "error", err)
		return StateFailed
	}
	c.logger.Info("buy order placed", "venue", buy.Name, "order_id", buyOrderID)

	sellOrderID, err := sell.Client.PlaceLimitOrder(ctx, sell.Symbol, model.SideSell, opp.Amount, opp.SellPrice)
	if err != nil {
		c.logger.Error("failed to place sell order", "venue", sell.Name, "error", err)
		// Compensation: cancel the already-placed buy leg. The cancel itself
		// may fail if the buy filled first; that is logged as its own cause
		// and the outcome stays Failed either way.
		if cancelErr := buy.Client.CancelOrder(ctx, buyOrderID, buy.Symbol); cancelErr != nil {
			c.logger.Error("failed to cancel buy order",
				"venue", buy.Name, "order_id", buyOrderID, "error", cancelErr)
		} else {
			c.logger.Info("buy order canceled", "venue", buy.Name, "order_id", buyOrderID)
		}
		return StateFailed
	}
	c.logger.Info("sell order placed", "venue", sell.Name, "order_id", sellOrderID)

	// Monitoring: both legs tracked independently and concurrently; each
	// goroutine writes only its own result.
	var buyErr, sellErr error
	var wg conc.WaitGroup
	wg.Go(func() {
		buyErr = c.monitor.Track(ctx, buy.Client, buyOrderID, buy.Symbol)
	})
	wg.Go(func() {
		sellErr = c.monitor.Track(ctx, sell.Client, sellOrderID, sell.Symbol)
	})
	wg.Wait()

	if buyErr == nil && sellErr == nil {
		c.logger.Info("both orders fully executed",
			"buy_venue", buy.Name, "sell_venue", sell.Name, "profit", opp.Profit)
		return StateSucceeded
	}
	c.logger.Warn("order execution incomplete, manual intervention may be required",
		"buy_venue", buy.Name, "buy_error", buyErr,
		"sell_venue", sell.Name, "sell_error", sellErr)
	return StateFailed
}

func (c *Coordinator) hasBalance(ctx context.Context, v *exchange.Venue, currency string, needed float64) bool {
	available, err := v.Client.FetchBalance(ctx, currency)
	if err != nil {
		c.logger.Error("failed to fetch balance", "venue", v.Name, "currency", currency, "error", err)
		return false
	}
	if available < needed {
		c.logger.Warn("insufficient balance",
			"venue", v.Name, "currency", currency, "needed", needed, "available", available)
		return false
	}
	return true
}
