package engine

import (
	"math"
	"time"

	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/transaction_cost"
	"github.com/rxtech-lab/inkback/internal/logger"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger holds the single position of a run and the realized equity.
// Unrealized PnL of an open position is never marked.
type Ledger struct {
	instrument types.Instrument
	costs      transaction_cost.TransactionCosts
	anomalies  *types.Anomalies
	log        *logger.Logger

	equity   decimal.Decimal
	position types.Position
	trades   []types.Trade
}

func NewLedger(startingEquity float64, instrument types.Instrument, costs transaction_cost.TransactionCosts, anomalies *types.Anomalies, log *logger.Logger) *Ledger {
	return &Ledger{
		instrument: instrument,
		costs:      costs,
		anomalies:  anomalies,
		log:        log,
		equity:     decimal.NewFromFloat(startingEquity),
		position:   types.NeutralPosition(),
		trades:     nil,
	}
}

// Equity returns the starting equity plus all realized PnL.
func (l *Ledger) Equity() float64 {
	return l.equity.InexactFloat64()
}

func (l *Ledger) Position() types.Position {
	return l.position
}

func (l *Ledger) Trades() []types.Trade {
	return l.trades
}

// Open enters a position at the cost adjusted fill price. It returns false
// and leaves the ledger Neutral when the costs are not finite.
func (l *Ledger) Open(side types.PositionSide, fillPrice float64, size float64, volume float64, at time.Time) bool {
	isBuy := side == types.PositionSideLong
	entry := l.costs.AdjustFillPrice(fillPrice, size, volume, isBuy)
	entryCost := l.costs.CalculateEntryCost(entry, size, volume)

	if !isFinite(entry) || !isFinite(entryCost) || !(entry > 0) {
		l.anomalies.NonFiniteCosts++
		l.log.Warn("Discarding fill with non-finite costs",
			zap.String("side", string(side)),
			zap.Float64("fill_price", fillPrice),
			zap.Float64("size", size),
			zap.Time("time", at),
		)

		return false
	}

	l.position = types.Position{
		Side:       side,
		EntryPrice: entry,
		Size:       size,
		EntryTime:  at,
		EntryCost:  entryCost,
	}

	l.log.Debug("Position opened",
		zap.String("side", string(side)),
		zap.Float64("entry_price", entry),
		zap.Float64("size", size),
		zap.Time("time", at),
	)

	return true
}

// Close exits the open position at the cost adjusted order price and
// realizes PnL. A non-finite result discards the trade and keeps the
// position open.
func (l *Ledger) Close(orderPrice float64, volume float64, at time.Time, reason types.ExitReason) bool {
	if l.position.IsNeutral() {
		return false
	}

	position := l.position
	isBuy := position.Side == types.PositionSideShort
	exit := l.costs.AdjustFillPrice(orderPrice, position.Size, volume, isBuy)
	exitCost := l.costs.CalculateExitCost(exit, position.Size, volume)

	if !isFinite(exit) || !isFinite(exitCost) {
		l.anomalies.NonFinitePnL++
		l.log.Warn("Discarding exit with non-finite PnL",
			zap.Float64("exit_price", exit),
			zap.Float64("exit_cost", exitCost),
			zap.Time("time", at),
		)

		return false
	}

	// costs larger than the price leave no meaningful exit
	if !(exit > 0) {
		l.anomalies.NonFiniteCosts++
		l.log.Warn("Discarding exit with non-positive cost adjusted price",
			zap.Float64("order_price", orderPrice),
			zap.Float64("exit_price", exit),
			zap.Time("time", at),
		)

		return false
	}

	entryPrice := decimal.NewFromFloat(position.EntryPrice)
	exitPrice := decimal.NewFromFloat(exit)

	move := exitPrice.Sub(entryPrice)
	if position.Side == types.PositionSideShort {
		move = entryPrice.Sub(exitPrice)
	}

	costs := decimal.NewFromFloat(position.EntryCost).Add(decimal.NewFromFloat(exitCost))
	pnl := move.
		Mul(decimal.NewFromFloat(position.Size)).
		Mul(decimal.NewFromFloat(l.instrument.Multiplier())).
		Sub(costs)

	pnlFloat := pnl.InexactFloat64()
	if !isFinite(pnlFloat) {
		l.anomalies.NonFinitePnL++
		l.log.Warn("Discarding exit with non-finite PnL", zap.Time("time", at))

		return false
	}

	pnlPercent := (exit/position.EntryPrice - 1) * 100
	if position.Side == types.PositionSideShort {
		pnlPercent = (position.EntryPrice/exit - 1) * 100
	}

	l.equity = l.equity.Add(pnl)
	l.trades = append(l.trades, types.Trade{
		EntryTime:        position.EntryTime,
		ExitTime:         at,
		EntryPrice:       position.EntryPrice,
		ExitPrice:        exit,
		Size:             position.Size,
		Side:             position.Side,
		PnL:              pnlFloat,
		PnLPercent:       pnlPercent,
		ExitReason:       reason,
		TransactionCosts: costs.InexactFloat64(),
	})
	l.position = types.NeutralPosition()

	l.log.Debug("Position closed",
		zap.String("side", string(position.Side)),
		zap.Float64("exit_price", exit),
		zap.Float64("pnl", pnlFloat),
		zap.Time("time", at),
	)

	return true
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
