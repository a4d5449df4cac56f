package types

import "time"

type ExitReason string

const (
	ExitReasonStrategy ExitReason = "Strategy"
	// ExitReasonEnd marks the synthetic benchmark trade closed at the last event.
	ExitReasonEnd ExitReason = "End"
)

// Trade is a closed round trip.
type Trade struct {
	EntryTime  time.Time    `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	ExitTime   time.Time    `yaml:"exit_time" json:"exit_time" csv:"exit_time"`
	EntryPrice float64      `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	ExitPrice  float64      `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	Size       float64      `yaml:"size" json:"size" csv:"size"`
	Side       PositionSide `yaml:"side" json:"side" csv:"side"`
	// PnL is net of entry and exit transaction costs.
	PnL float64 `yaml:"pnl" json:"pnl" csv:"pnl"`
	// PnLPercent is the price return of the round trip in percent, before costs.
	PnLPercent       float64    `yaml:"pnl_percent" json:"pnl_percent" csv:"pnl_percent"`
	ExitReason       ExitReason `yaml:"exit_reason" json:"exit_reason" csv:"exit_reason"`
	TransactionCosts float64    `yaml:"transaction_costs" json:"transaction_costs" csv:"transaction_costs"`
}

func (t Trade) IsWin() bool {
	return t.PnL > 0
}

func (t Trade) IsLoss() bool {
	return t.PnL < 0
}

func (t Trade) HoldingTime() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
