package types

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Anomalies counts numeric anomalies and invariant violations that were
// absorbed during a run instead of failing it.
type Anomalies struct {
	// NonFinitePnL counts exits whose PnL was NaN or infinite and were discarded.
	NonFinitePnL int `yaml:"non_finite_pnl" json:"non_finite_pnl"`
	// NonFiniteEquity counts equity points replaced by the last finite value.
	NonFiniteEquity int `yaml:"non_finite_equity" json:"non_finite_equity"`
	// SkippedFills counts fills skipped because a position was already open.
	SkippedFills int `yaml:"skipped_fills" json:"skipped_fills"`
	// ZeroSizeFills counts fills rejected because the computed size was not positive.
	ZeroSizeFills int `yaml:"zero_size_fills" json:"zero_size_fills"`
	// IgnoredOrders counts orders that had no effect in the current position state.
	IgnoredOrders int `yaml:"ignored_orders" json:"ignored_orders"`
	// MalformedEvents counts events dropped by the data source.
	MalformedEvents int `yaml:"malformed_events" json:"malformed_events"`
	// NonFiniteCosts counts cost calculations that produced NaN, infinity or a
	// fill price at or below zero.
	NonFiniteCosts int `yaml:"non_finite_costs" json:"non_finite_costs"`
}

func (a Anomalies) Total() int {
	return a.NonFinitePnL + a.NonFiniteEquity + a.SkippedFills + a.ZeroSizeFills +
		a.IgnoredOrders + a.MalformedEvents + a.NonFiniteCosts
}

// BacktestResult is the report of one run of a strategy over a series.
type BacktestResult struct {
	Label string `yaml:"label" json:"label"`
	RunID string `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	// Parameters are the strategy parameters of the run, empty for a benchmark.
	Parameters     map[string]float64 `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	StartingEquity float64            `yaml:"starting_equity" json:"starting_equity"`
	EndingEquity   float64            `yaml:"ending_equity" json:"ending_equity"`
	TotalReturn    float64            `yaml:"total_return" json:"total_return"`
	// TotalReturnPercent is (ending / starting - 1) * 100.
	TotalReturnPercent float64 `yaml:"total_return_percent" json:"total_return_percent"`
	MaxDrawdown        float64 `yaml:"max_drawdown" json:"max_drawdown"`
	MaxDrawdownPercent float64 `yaml:"max_drawdown_percent" json:"max_drawdown_percent"`
	// WinRate is winning trades over total trades, in [0, 1].
	WinRate        float64 `yaml:"win_rate" json:"win_rate"`
	ProfitFactor   float64 `yaml:"profit_factor" json:"profit_factor"`
	TotalTrades    int     `yaml:"total_trades" json:"total_trades"`
	WinningTrades  int     `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades   int     `yaml:"losing_trades" json:"losing_trades"`
	AverageWin     float64 `yaml:"average_win" json:"average_win"`
	// AverageLoss is a positive magnitude.
	AverageLoss           float64 `yaml:"average_loss" json:"average_loss"`
	LargestWin            float64 `yaml:"largest_win" json:"largest_win"`
	LargestLoss           float64 `yaml:"largest_loss" json:"largest_loss"`
	TotalTransactionCosts float64 `yaml:"total_transaction_costs" json:"total_transaction_costs"`
	EventsProcessed       int     `yaml:"events_processed" json:"events_processed"`
	// CancelledOrders counts limit orders that expired or were still pending at series end.
	CancelledOrders int       `yaml:"cancelled_orders" json:"cancelled_orders"`
	Anomalies       Anomalies `yaml:"anomalies" json:"anomalies"`
	// OpenPosition is the position still held after the last event. It is not marked to market.
	OpenPosition Position  `yaml:"open_position" json:"open_position"`
	EquityCurve  []float64 `yaml:"-" json:"equity_curve"`
	Trades       []Trade   `yaml:"-" json:"trades"`
}

// WriteBacktestResults writes the results as YAML. Equity curves and trade
// lists are left to the result store.
func WriteBacktestResults(path string, results []BacktestResult) error {
	data, err := yaml.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest results to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest results to file: %w", err)
	}

	return nil
}
