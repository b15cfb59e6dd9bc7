package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"arbot/internal/arbitrage"
	"arbot/internal/backtest"
	"arbot/internal/config"
)

func main() {
	configPath := flag.String("config", ".", "Directory containing config.yaml")
	dataDir := flag.String("data", "data", "Directory containing per-venue CSV quote series")
	venueList := flag.String("venues", "", "Comma-separated venue subset (default: all configured)")
	outPath := flag.String("out", "trade_log.csv", "Trade log output path")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}
	if cfg.InitialBalance <= 0 {
		log.Fatal("initial_balance must be positive for a backtest")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	venues := venueNames(&cfg, *venueList)
	series := backtest.LoadVenueSeries(logger, *dataDir, venues, cfg.VenueSymbol)
	if len(series) == 0 {
		log.Fatal("no historical data loaded")
	}

	rows := backtest.Synchronize(series)
	logger.Info("data synchronized across venues", "venues", len(series), "rows", len(rows))

	engine := backtest.NewEngine(logger, cfg.FeeTable(), arbitrage.ScanParams{
		MinProfitPercent: cfg.MinProfitPercent,
		TradeAmount:      cfg.TradeAmount,
		MaxTradeAmount:   cfg.MaxTradeAmount,
	}, cfg.InitialBalance)

	result := engine.Run(rows, cfg.Symbol)

	printSummary(result)

	if err := backtest.WriteTradeLog(*outPath, result.Trades); err != nil {
		log.Fatalf("cannot write trade log: %v", err)
	}
	logger.Info("trade log saved", "path", *outPath, "trades", len(result.Trades))
}

func venueNames(cfg *config.Config, override string) []string {
	if override != "" {
		return strings.Split(override, ",")
	}
	names := make([]string, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		names = append(names, v.Name)
	}
	return names
}

func printSummary(result *backtest.Result) {
	s := result.Stats

	var totalProfit float64
	for _, t := range result.Trades {
		totalProfit += t.Profit
	}

	fmt.Println("BACKTEST RESULTS")
	fmt.Printf("  Total Profit:          $%.2f\n", totalProfit)
	fmt.Printf("  Number of Trades:      %d\n", s.Trades)
	fmt.Printf("  Trade Frequency:       %.2f trades/timestamp\n", s.TradeFrequency)
	fmt.Printf("  Avg Profit per Trade:  $%.2f\n", s.AvgProfit)
	fmt.Printf("  Largest Single Profit: $%.2f\n", s.MaxProfit)
	fmt.Printf("  Largest Single Loss:   $%.2f\n", s.MinProfit)
	fmt.Printf("  Avg Trade Duration:    %.2f minutes\n", s.AvgTradeDuration.Minutes())
	fmt.Printf("  Total Return:          %.4f%%\n", s.TotalReturn*100)
	fmt.Printf("  Annualized Return:     %.4f%%\n", s.AnnualizedReturn*100)
	fmt.Printf("  Sharpe Ratio:          %s\n", ratio(s.SharpeRatio))
	fmt.Printf("  Sortino Ratio:         %s\n", ratio(s.SortinoRatio))
	fmt.Printf("  Maximum Drawdown:      %.4f%%\n", s.MaxDrawdown*100)
	fmt.Printf("  Calmar Ratio:          %s\n", ratio(s.CalmarRatio))

	fmt.Println("\nFinal Balances")
	for venue, balance := range result.Balances {
		fmt.Printf("  %-12s $%.2f\n", venue, balance)
	}

	if s.Trades == 0 {
		fmt.Println("\nNo trades were executed during the backtest.")
		return
	}
	first := result.Trades[0].Timestamp
	last := result.Trades[len(result.Trades)-1].Timestamp
	fmt.Printf("\nProfit of $%.2f made in %s\n", totalProfit, last.Sub(first).Round(time.Second))
}

func ratio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsInf(v, -1) {
		return "-inf"
	}
	return fmt.Sprintf("%.4f", v)
}
