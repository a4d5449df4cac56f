package strategy

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

const FootprintImbalanceName = "footprint_imbalance"

// FootprintImbalance trades the buy/sell volume imbalance of footprint bars.
// It buys when the current bar's imbalance exceeds the threshold and the
// volume weighted imbalance over the lookback agrees, and sells on the
// mirrored condition. Non footprint events are ignored.
type FootprintImbalance struct {
	imbalanceThreshold float64
	volumeThreshold    float64
	lookback           int
	takeProfit         float64
	stopLoss           float64

	history    []types.Footprint
	lastSignal types.OrderKind
	side       types.PositionSide
	entryPrice float64
}

func NewFootprintImbalance(params types.StrategyParams) (Strategy, error) {
	imbalanceThreshold, err := params.Require("imbalance_threshold")
	if err != nil {
		return nil, err
	}

	volumeThreshold, err := params.Require("volume_threshold")
	if err != nil {
		return nil, err
	}

	lookback, err := params.RequirePositiveInt("lookback_periods")
	if err != nil {
		return nil, err
	}

	takeProfit, err := params.Require("take_profit")
	if err != nil {
		return nil, err
	}

	stopLoss, err := params.Require("stop_loss")
	if err != nil {
		return nil, err
	}

	if imbalanceThreshold < 0 || imbalanceThreshold > 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidThreshold, "imbalance_threshold must be within [0, 1], got %v", imbalanceThreshold)
	}

	if volumeThreshold < 0 || takeProfit < 0 || stopLoss < 0 {
		return nil, errors.New(errors.ErrCodeInvalidThreshold, "volume_threshold, take_profit and stop_loss must not be negative")
	}

	strategy := &FootprintImbalance{
		imbalanceThreshold: imbalanceThreshold,
		volumeThreshold:    volumeThreshold,
		lookback:           lookback,
		takeProfit:         takeProfit,
		stopLoss:           stopLoss,
	}
	strategy.Reset()

	return strategy, nil
}

func (f *FootprintImbalance) Name() string {
	return FootprintImbalanceName
}

func (f *FootprintImbalance) Reset() {
	f.history = make([]types.Footprint, 0, f.lookback+1)
	f.lastSignal = ""
	f.side = types.PositionSideNeutral
	f.entryPrice = 0
}

func (f *FootprintImbalance) Decide(event types.MarketEvent, previous optional.Option[types.MarketEvent]) optional.Option[types.Order] {
	footprint, ok := event.(types.Footprint)
	if !ok {
		return optional.None[types.Order]()
	}

	f.history = append(f.history, footprint)
	if len(f.history) > f.lookback {
		f.history = f.history[1:]
	}

	if len(f.history) < f.lookback {
		return optional.None[types.Order]()
	}

	price := footprint.Price()

	if f.side != types.PositionSideNeutral && exitTriggered(f.side, f.entryPrice, price, f.takeProfit, f.stopLoss) {
		return optional.Some(f.flatten(price))
	}

	if footprint.TradedVolume() < f.volumeThreshold {
		return optional.None[types.Order]()
	}

	current := footprint.Imbalance()
	average := f.weightedImbalance()

	var signal types.OrderKind

	switch {
	case current > f.imbalanceThreshold && average > 0:
		signal = types.OrderKindMarketBuy
	case current < -f.imbalanceThreshold && average < 0:
		signal = types.OrderKindMarketSell
	default:
		return optional.None[types.Order]()
	}

	if signal == f.lastSignal {
		return optional.None[types.Order]()
	}

	f.lastSignal = signal

	if f.side != types.PositionSideNeutral {
		return optional.Some(f.flatten(price))
	}

	f.side = signal.Side()
	f.entryPrice = price

	return optional.Some(types.Order{Kind: signal, Price: price})
}

// weightedImbalance is the volume weighted imbalance over the lookback.
func (f *FootprintImbalance) weightedImbalance() float64 {
	weighted, volume := 0.0, 0.0

	for _, bar := range f.history {
		total := bar.BuyVolume() + bar.SellVolume()
		weighted += bar.Imbalance() * total
		volume += total
	}

	if volume == 0 {
		return 0
	}

	return weighted / volume
}

func (f *FootprintImbalance) flatten(price float64) types.Order {
	order := closingOrder(f.side, price)
	f.side = types.PositionSideNeutral
	f.entryPrice = 0

	return order
}
