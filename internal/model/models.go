package model

import "time"

// TopOfBook holds the best quoted prices on one venue. A nil side means the
// venue's book was empty on that side; it is never defaulted to zero.
type TopOfBook struct {
	Bid *float64
	Ask *float64
}

// Snapshot maps venue name to its top-of-book for one decision cycle. A venue
// whose fetch failed is simply absent. Snapshots are built fresh each cycle
// and never mutated afterwards.
type Snapshot map[string]TopOfBook

// Opportunity is a fee-adjusted profitable price discrepancy between two
// venues, immutable once produced by the scanner.
type Opportunity struct {
	BuyVenue      string
	SellVenue     string
	BuyPrice      float64
	SellPrice     float64
	Profit        float64
	ProfitPercent float64
	Amount        float64
	Timestamp     time.Time
}

// Side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus as observed via polling, never inferred.
type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderClosed   OrderStatus = "closed"
	OrderCanceled OrderStatus = "canceled"
	OrderUnknown  OrderStatus = "unknown"
)

// Order is one leg of an arbitrage trade as placed on a venue.
type Order struct {
	Venue    string
	Symbol   string
	Side     Side
	Price    float64
	Amount   float64
	ID       string
	ClientID string
	Status   OrderStatus
}

// TradeRecord is a finalized trade appended to the trade log.
type TradeRecord struct {
	ID            int64     `db:"id"`
	Timestamp     time.Time `db:"executed_at"`
	TradingPair   string    `db:"trading_pair"`
	BuyVenue      string    `db:"buy_venue"`
	SellVenue     string    `db:"sell_venue"`
	BuyPrice      float64   `db:"buy_price"`
	SellPrice     float64   `db:"sell_price"`
	Amount        float64   `db:"amount"`
	Profit        float64   `db:"profit"`
	ProfitPercent float64   `db:"profit_percent"`
	Outcome       string    `db:"outcome"`
}

// Float returns a pointer to v, for building TopOfBook literals.
func Float(v float64) *float64 { return &v }
