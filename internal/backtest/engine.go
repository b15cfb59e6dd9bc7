package backtest

import (
	"log/slog"

	"arbot/internal/arbitrage"
	"arbot/internal/model"
)

// Engine replays synchronized historical rows through the same opportunity
// scanner the live loop uses, applying every opportunity instantly against a
// simulated ledger. The replay is single-threaded and deterministic.
type Engine struct {
	logger         *slog.Logger
	fees           map[string]float64
	params         arbitrage.ScanParams
	initialBalance float64
}

// Result of a replay run.
type Result struct {
	Balances map[string]float64
	Trades   []model.TradeRecord
	Stats    Stats
}

// NewEngine creates a replay engine. initialBalance is the starting
// quote-currency balance credited to every venue.
func NewEngine(logger *slog.Logger, fees map[string]float64, params arbitrage.ScanParams, initialBalance float64) *Engine {
	return &Engine{
		logger:         logger,
		fees:           fees,
		params:         params,
		initialBalance: initialBalance,
	}
}

// Run consumes the rows in order and returns the final ledger, the trade log,
// and derived statistics.
func (e *Engine) Run(rows []Row, tradingPair string) *Result {
	balances := make(map[string]float64)
	if len(rows) > 0 {
		for venue := range rows[0].Books {
			balances[venue] = e.initialBalance
		}
	}

	var trades []model.TradeRecord
	for _, row := range rows {
		opportunities := arbitrage.Scan(row.Books, e.fees, e.params, balances, row.Timestamp)
		for _, opp := range opportunities {
			cost := opp.Amount * opp.BuyPrice * (1 + e.fees[opp.BuyVenue])
			revenue := opp.Amount * opp.SellPrice * (1 - e.fees[opp.SellVenue])

			// Fills are instantaneous and contingent only on the buy venue's
			// quote-currency balance; an unaffordable trade is a logged no-op,
			// never queued or retried.
			if balances[opp.BuyVenue] < cost {
				e.logger.Warn("insufficient balance for simulated trade",
					"venue", opp.BuyVenue, "required", cost, "available", balances[opp.BuyVenue])
				continue
			}
			balances[opp.BuyVenue] -= cost
			balances[opp.SellVenue] += revenue

			trades = append(trades, model.TradeRecord{
				Timestamp:     row.Timestamp,
				TradingPair:   tradingPair,
				BuyVenue:      opp.BuyVenue,
				SellVenue:     opp.SellVenue,
				BuyPrice:      opp.BuyPrice,
				SellPrice:     opp.SellPrice,
				Amount:        opp.Amount,
				Profit:        opp.Profit,
				ProfitPercent: opp.ProfitPercent,
				Outcome:       "simulated",
			})
			e.logger.Debug("simulated trade executed",
				"buy_venue", opp.BuyVenue, "sell_venue", opp.SellVenue,
				"amount", opp.Amount, "profit", opp.Profit)
		}
	}

	return &Result{
		Balances: balances,
		Trades:   trades,
		Stats:    ComputeStats(trades),
	}
}
