package engine

import (
	"math"

	"github.com/rxtech-lab/inkback/internal/types"
)

// ProfitFactorCap is reported as the profit factor when there are winning
// trades and no losing ones.
const ProfitFactorCap = 1000.0

// CalculateMetrics reduces an equity curve and trade list to the summary
// fields of a BacktestResult. The ending equity is the last curve point.
func CalculateMetrics(startingEquity float64, equityCurve []float64, trades []types.Trade) types.BacktestResult {
	endingEquity := startingEquity
	if len(equityCurve) > 0 {
		endingEquity = equityCurve[len(equityCurve)-1]
	}

	result := types.BacktestResult{
		StartingEquity: startingEquity,
		EndingEquity:   endingEquity,
		TotalReturn:    endingEquity - startingEquity,
		EquityCurve:    equityCurve,
		Trades:         trades,
		TotalTrades:    len(trades),
	}

	if startingEquity != 0 {
		result.TotalReturnPercent = (endingEquity/startingEquity - 1) * 100
	}

	result.MaxDrawdown, result.MaxDrawdownPercent = maxDrawdown(startingEquity, equityCurve)

	grossProfit, grossLoss := 0.0, 0.0

	for _, trade := range trades {
		result.TotalTransactionCosts += trade.TransactionCosts

		switch {
		case trade.IsWin():
			result.WinningTrades++
			grossProfit += trade.PnL
			result.LargestWin = math.Max(result.LargestWin, trade.PnL)
		case trade.IsLoss():
			result.LosingTrades++
			grossLoss -= trade.PnL
			result.LargestLoss = math.Min(result.LargestLoss, trade.PnL)
		}
	}

	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
	}

	if result.WinningTrades > 0 {
		result.AverageWin = grossProfit / float64(result.WinningTrades)
	}

	if result.LosingTrades > 0 {
		result.AverageLoss = grossLoss / float64(result.LosingTrades)
	}

	result.ProfitFactor = profitFactor(grossProfit, grossLoss)

	return result
}

// maxDrawdown tracks the running peak from startingEquity and returns the
// largest drop below it, absolute and in percent of the peak at that point.
func maxDrawdown(startingEquity float64, equityCurve []float64) (float64, float64) {
	peak := startingEquity
	maxAbsolute, maxPercent := 0.0, 0.0

	for _, point := range equityCurve {
		if point > peak {
			peak = point
		}

		drawdown := peak - point
		maxAbsolute = math.Max(maxAbsolute, drawdown)

		if peak > 0 {
			maxPercent = math.Max(maxPercent, drawdown/peak*100)
		}
	}

	return maxAbsolute, maxPercent
}

func profitFactor(grossProfit float64, grossLoss float64) float64 {
	switch {
	case grossLoss > 0:
		return grossProfit / grossLoss
	case grossProfit > 0:
		return ProfitFactorCap
	default:
		return 0
	}
}
