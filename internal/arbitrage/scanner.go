package arbitrage

import (
	"math"
	"sort"
	"time"

	"arbot/internal/model"
)

// ScanParams are the sizing and profitability limits applied to every pair.
type ScanParams struct {
	MinProfitPercent float64
	TradeAmount      float64
	MaxTradeAmount   float64
}

// Profit computes the fee-adjusted outcome of buying amount at buyPrice and
// selling it at sellPrice. Fees are fractions of notional. A non-positive buy
// cost makes the percentage undefined; the caller must treat that as no
// opportunity.
func Profit(buyPrice, sellPrice, buyFee, sellFee, amount float64) (profitPercent, profit float64) {
	buyCost := buyPrice * amount * (1 + buyFee)
	sellRevenue := sellPrice * amount * (1 - sellFee)
	profit = sellRevenue - buyCost
	if buyCost <= 0 {
		return math.NaN(), profit
	}
	profitPercent = profit / buyCost * 100
	return profitPercent, profit
}

// Scan enumerates every ordered venue pair in the snapshot and returns the
// fee-adjusted opportunities clearing the minimum profit percentage. It is a
// pure function: the same inputs always produce the same opportunities in the
// same order, which is what keeps live and replay behavior identical.
//
// balances, when non-nil, caps the trade size per pair at what the buy
// venue's quote-currency balance can afford including the fee.
func Scan(snapshot model.Snapshot, fees map[string]float64, params ScanParams, balances map[string]float64, now time.Time) []model.Opportunity {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	var opportunities []model.Opportunity
	for _, buyVenue := range names {
		for _, sellVenue := range names {
			if buyVenue == sellVenue {
				continue
			}
			buyPrice := snapshot[buyVenue].Ask
			sellPrice := snapshot[sellVenue].Bid
			if buyPrice == nil || sellPrice == nil || *buyPrice >= *sellPrice {
				continue
			}

			buyFee := fees[buyVenue]
			sellFee := fees[sellVenue]

			amount := min(params.TradeAmount, params.MaxTradeAmount)
			if balances != nil {
				unitCost := *buyPrice * (1 + buyFee)
				if unitCost <= 0 {
					continue
				}
				amount = min(amount, balances[buyVenue]/unitCost)
			}
			if amount <= 0 {
				continue
			}

			profitPercent, profit := Profit(*buyPrice, *sellPrice, buyFee, sellFee, amount)
			if math.IsNaN(profitPercent) || profitPercent < params.MinProfitPercent {
				continue
			}

			opportunities = append(opportunities, model.Opportunity{
				BuyVenue:      buyVenue,
				SellVenue:     sellVenue,
				BuyPrice:      *buyPrice,
				SellPrice:     *sellPrice,
				Profit:        profit,
				ProfitPercent: profitPercent,
				Amount:        amount,
				Timestamp:     now,
			})
		}
	}
	return opportunities
}
