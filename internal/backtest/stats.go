package backtest

import (
	"math"
	"time"

	"arbot/internal/model"
)

const annualTradingDays = 365

// Stats are the performance and risk figures derived from a replay trade log.
// Ratio fields report ±Inf when their denominator is zero.
type Stats struct {
	Trades           int
	TradeFrequency   float64 // trades per unique timestamp
	AvgProfit        float64
	MaxProfit        float64
	MinProfit        float64
	AvgTradeDuration time.Duration
	TotalReturn      float64
	AnnualizedReturn float64
	SharpeRatio      float64
	SortinoRatio     float64
	MaxDrawdown      float64
	CalmarRatio      float64
}

// ComputeStats derives summary statistics from the trade log. The per-trade
// return is profit over the cost basis (buy price times amount).
func ComputeStats(trades []model.TradeRecord) Stats {
	var s Stats
	s.Trades = len(trades)
	if len(trades) == 0 {
		return s
	}

	s.MaxProfit = math.Inf(-1)
	s.MinProfit = math.Inf(1)
	var profitSum float64
	returns := make([]float64, len(trades))
	unique := make(map[time.Time]struct{})
	for i, t := range trades {
		profitSum += t.Profit
		s.MaxProfit = math.Max(s.MaxProfit, t.Profit)
		s.MinProfit = math.Min(s.MinProfit, t.Profit)
		returns[i] = t.Profit / (t.BuyPrice * t.Amount)
		unique[t.Timestamp] = struct{}{}
	}
	s.AvgProfit = profitSum / float64(len(trades))
	s.TradeFrequency = float64(len(trades)) / float64(len(unique))

	if len(trades) > 1 {
		var total time.Duration
		for i := 1; i < len(trades); i++ {
			total += trades[i].Timestamp.Sub(trades[i-1].Timestamp)
		}
		s.AvgTradeDuration = total / time.Duration(len(trades)-1)
	}

	for _, r := range returns {
		s.TotalReturn += r
	}

	days := int(trades[len(trades)-1].Timestamp.Sub(trades[0].Timestamp).Hours() / 24)
	if days > 0 {
		s.AnnualizedReturn = math.Pow(1+s.TotalReturn, float64(annualTradingDays)/float64(days)) - 1
	}

	meanReturn := s.TotalReturn / float64(len(returns))
	s.SharpeRatio = scaledRatio(meanReturn, stdDev(returns))

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		s.SortinoRatio = math.Inf(1)
	} else {
		s.SortinoRatio = scaledRatio(meanReturn, stdDev(downside))
	}

	s.MaxDrawdown = maxDrawdown(returns)
	if s.MaxDrawdown == 0 {
		s.CalmarRatio = math.Inf(1)
	} else {
		s.CalmarRatio = s.AnnualizedReturn / math.Abs(s.MaxDrawdown)
	}
	return s
}

// scaledRatio is mean/std scaled by the square root of a trading year, with
// the unbounded sentinel on a zero denominator.
func scaledRatio(mean, std float64) float64 {
	if std == 0 {
		return math.Inf(sign(mean))
	}
	return math.Sqrt(annualTradingDays) * mean / std
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}

// stdDev is the sample standard deviation; fewer than two values yields zero
// so callers report the sentinel.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

// maxDrawdown is the most negative peak-to-trough decline of the cumulative
// (1+r) product curve, expressed as a fraction (<= 0).
func maxDrawdown(returns []float64) float64 {
	cumulative := 1.0
	peak := math.Inf(-1)
	worst := 0.0
	for _, r := range returns {
		cumulative *= 1 + r
		peak = math.Max(peak, cumulative)
		drawdown := cumulative/peak - 1
		worst = math.Min(worst, drawdown)
	}
	return worst
}
