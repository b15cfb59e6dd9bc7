package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"arbot/internal/model"
)

// WriteTradeLog saves the trade log as CSV for downstream reporting.
func WriteTradeLog(path string, trades []model.TradeRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"timestamp", "trading_pair", "buy_venue", "sell_venue",
		"buy_price", "sell_price", "amount", "profit", "profit_percent",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			t.Timestamp.UTC().Format(time.RFC3339),
			t.TradingPair,
			t.BuyVenue,
			t.SellVenue,
			strconv.FormatFloat(t.BuyPrice, 'f', -1, 64),
			strconv.FormatFloat(t.SellPrice, 'f', -1, 64),
			strconv.FormatFloat(t.Amount, 'f', -1, 64),
			strconv.FormatFloat(t.Profit, 'f', -1, 64),
			strconv.FormatFloat(t.ProfitPercent, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
