package app

import (
	"context"
	"log/slog"
	"time"

	"arbot/internal/arbitrage"
	"arbot/internal/config"
	"arbot/internal/database"
	"arbot/internal/exchange"
	"arbot/internal/marketdata"
	"arbot/internal/model"
)

// App wires the live decision loop: concurrent quote aggregation, opportunity
// scanning, and sequential execution of one opportunity to completion.
type App struct {
	logger      *slog.Logger
	cfg         *config.Config
	venues      map[string]*exchange.Venue
	aggregator  *marketdata.Aggregator
	coordinator *arbitrage.Coordinator
	repo        database.Repository
}

// New assembles the live engine over the initialized venues. repo may be nil
// when trade persistence is not configured.
func New(logger *slog.Logger, cfg *config.Config, venues map[string]*exchange.Venue, repo database.Repository) *App {
	monitor := arbitrage.NewMonitor(logger, cfg.OrderPollInterval, cfg.OrderTimeout)
	return &App{
		logger:      logger,
		cfg:         cfg,
		venues:      venues,
		aggregator:  marketdata.NewAggregator(logger, venues),
		coordinator: arbitrage.NewCoordinator(logger, monitor, cfg.BaseCurrency(), cfg.QuoteCurrency()),
		repo:        repo,
	}
}

// Run executes decision cycles until the context is canceled. Venue-call
// failures never escape a cycle; the caller owns venue shutdown.
func (a *App) Run(ctx context.Context) error {
	fees := a.cfg.FeeTable()
	params := arbitrage.ScanParams{
		MinProfitPercent: a.cfg.MinProfitPercent,
		TradeAmount:      a.cfg.TradeAmount,
		MaxTradeAmount:   a.cfg.MaxTradeAmount,
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		snapshot := a.aggregator.Snapshot(ctx)
		if len(snapshot) == 0 {
			a.logger.Warn("no quotes fetched, deferring cycle")
			if !a.sleep(ctx) {
				return nil
			}
			continue
		}

		opportunities := arbitrage.Scan(snapshot, fees, params, nil, time.Now().UTC())
		if len(opportunities) == 0 {
			a.logger.Info("no arbitrage opportunities at this time")
		}
		for _, opp := range opportunities {
			a.logger.Info("arbitrage opportunity detected",
				"buy_venue", opp.BuyVenue, "sell_venue", opp.SellVenue,
				"buy_price", opp.BuyPrice, "sell_price", opp.SellPrice,
				"amount", opp.Amount, "profit", opp.Profit, "profit_percent", opp.ProfitPercent)

			state := a.coordinator.Execute(ctx, a.venues[opp.BuyVenue], a.venues[opp.SellVenue], opp)
			switch state {
			case arbitrage.StateSucceeded:
				a.logger.Info("arbitrage trade executed successfully")
			case arbitrage.StateAborted:
				a.logger.Warn("arbitrage trade aborted before placement")
			default:
				a.logger.Warn("arbitrage trade execution failed")
			}
			if state != arbitrage.StateAborted {
				a.recordTrade(ctx, opp, state)
			}
			if ctx.Err() != nil {
				return nil
			}
		}

		if !a.sleep(ctx) {
			return nil
		}
	}
}

// recordTrade persists the outcome of a placed opportunity when a repository
// is configured. Persistence failures are logged, never fatal to the loop.
func (a *App) recordTrade(ctx context.Context, opp model.Opportunity, state arbitrage.State) {
	if a.repo == nil {
		return
	}
	record := model.TradeRecord{
		Timestamp:     opp.Timestamp,
		TradingPair:   a.cfg.Symbol,
		BuyVenue:      opp.BuyVenue,
		SellVenue:     opp.SellVenue,
		BuyPrice:      opp.BuyPrice,
		SellPrice:     opp.SellPrice,
		Amount:        opp.Amount,
		Profit:        opp.Profit,
		ProfitPercent: opp.ProfitPercent,
		Outcome:       string(state),
	}
	if err := a.repo.LogTrade(ctx, record); err != nil {
		a.logger.Error("failed to log trade", "error", err)
	}
}

func (a *App) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(a.cfg.CheckInterval):
		return true
	}
}
