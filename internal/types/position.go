package types

import "time"

type PositionSide string

const (
	PositionSideNeutral PositionSide = "NEUTRAL"
	PositionSideLong    PositionSide = "LONG"
	PositionSideShort   PositionSide = "SHORT"
)

// Position is the single open exposure of a simulation. EntryPrice already
// includes slippage and half the spread.
type Position struct {
	Side       PositionSide `yaml:"side" json:"side"`
	EntryPrice float64      `yaml:"entry_price" json:"entry_price"`
	Size       float64      `yaml:"size" json:"size"`
	EntryTime  time.Time    `yaml:"entry_time" json:"entry_time"`
	// EntryCost is the transaction cost paid on entry, charged to the trade on exit.
	EntryCost float64 `yaml:"entry_cost" json:"entry_cost"`
}

func NeutralPosition() Position {
	return Position{Side: PositionSideNeutral}
}

func (p Position) IsNeutral() bool {
	return p.Side == PositionSideNeutral || p.Side == ""
}
