package strategy

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

const MovingAverageCrossName = "ma_cross"

// MovingAverageCross goes long when the short moving average of closes
// crosses above the long one and short when it crosses below. An open
// position is closed on the opposite cross or on take profit / stop loss.
//
// Parameters:
//   - short_window, long_window (required): window lengths, short < long
//   - take_profit, stop_loss: fractions of entry price, 0 disables
//   - volume_threshold: minimum event volume to open a position
type MovingAverageCross struct {
	shortWindow     int
	longWindow      int
	takeProfit      float64
	stopLoss        float64
	volumeThreshold float64

	closes     []float64
	lastSignal types.OrderKind
	side       types.PositionSide
	entryPrice float64
}

func NewMovingAverageCross(params types.StrategyParams) (Strategy, error) {
	shortWindow, err := params.RequirePositiveInt("short_window")
	if err != nil {
		return nil, err
	}

	longWindow, err := params.RequirePositiveInt("long_window")
	if err != nil {
		return nil, err
	}

	if shortWindow >= longWindow {
		return nil, errors.Newf(errors.ErrCodeInvalidWindow,
			"short_window (%d) must be less than long_window (%d)", shortWindow, longWindow)
	}

	takeProfit := params.GetOr("take_profit", 0)
	stopLoss := params.GetOr("stop_loss", 0)
	volumeThreshold := params.GetOr("volume_threshold", 0)

	if takeProfit < 0 || stopLoss < 0 || volumeThreshold < 0 {
		return nil, errors.New(errors.ErrCodeInvalidThreshold, "take_profit, stop_loss and volume_threshold must not be negative")
	}

	strategy := &MovingAverageCross{
		shortWindow:     shortWindow,
		longWindow:      longWindow,
		takeProfit:      takeProfit,
		stopLoss:        stopLoss,
		volumeThreshold: volumeThreshold,
	}
	strategy.Reset()

	return strategy, nil
}

func (m *MovingAverageCross) Name() string {
	return MovingAverageCrossName
}

func (m *MovingAverageCross) Reset() {
	m.closes = make([]float64, 0, m.longWindow+1)
	m.lastSignal = ""
	m.side = types.PositionSideNeutral
	m.entryPrice = 0
}

func (m *MovingAverageCross) Decide(event types.MarketEvent, previous optional.Option[types.MarketEvent]) optional.Option[types.Order] {
	price := event.Price()

	m.closes = append(m.closes, price)
	if len(m.closes) > m.longWindow {
		m.closes = m.closes[1:]
	}

	if len(m.closes) < m.longWindow {
		return optional.None[types.Order]()
	}

	if m.side != types.PositionSideNeutral && exitTriggered(m.side, m.entryPrice, price, m.takeProfit, m.stopLoss) {
		return optional.Some(m.flatten(price))
	}

	shortMA := mean(m.closes[m.longWindow-m.shortWindow:])
	longMA := mean(m.closes)

	var signal types.OrderKind

	switch {
	case shortMA > longMA:
		signal = types.OrderKindMarketBuy
	case shortMA < longMA:
		signal = types.OrderKindMarketSell
	default:
		return optional.None[types.Order]()
	}

	if signal == m.lastSignal {
		return optional.None[types.Order]()
	}

	m.lastSignal = signal

	if m.side != types.PositionSideNeutral {
		return optional.Some(m.flatten(price))
	}

	if event.TradedVolume() < m.volumeThreshold {
		return optional.None[types.Order]()
	}

	m.side = signal.Side()
	m.entryPrice = price

	return optional.Some(types.Order{Kind: signal, Price: price})
}

func (m *MovingAverageCross) flatten(price float64) types.Order {
	order := closingOrder(m.side, price)
	m.side = types.PositionSideNeutral
	m.entryPrice = 0

	return order
}
