package strategy

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

const OptionsMomentumName = "options_momentum"

// maxStrikeMultiple bounds strikes relative to the underlying to filter bad prints.
const maxStrikeMultiple = 5.0

// OptionsMomentum buys calls on upward underlying momentum and puts on
// downward momentum. The underlying is tracked from every event carrying
// an underlying quote; only option trades are traded. A held contract is
// sold on profit target, stop loss, or when it gets too close to expiry.
//
// Thresholds are given in percent: momentum_threshold 2 means 2%.
type OptionsMomentum struct {
	lookback          int
	momentumThreshold float64
	profitTarget      float64
	stopLoss          float64
	minDaysToExpiry   int

	underlying []float64
	holding    optional.Option[heldContract]
}

type heldContract struct {
	instrumentID uint32
	entryPrice   float64
	expiration   time.Time
}

func NewOptionsMomentum(params types.StrategyParams) (Strategy, error) {
	lookback, err := params.RequirePositiveInt("lookback_periods")
	if err != nil {
		return nil, err
	}

	momentumThreshold, err := params.Require("momentum_threshold")
	if err != nil {
		return nil, err
	}

	profitTarget, err := params.Require("profit_target")
	if err != nil {
		return nil, err
	}

	stopLoss, err := params.Require("stop_loss")
	if err != nil {
		return nil, err
	}

	minDays := params.GetOr("min_days_to_expiry", 0)

	if momentumThreshold <= 0 || profitTarget <= 0 || stopLoss <= 0 || minDays < 0 {
		return nil, errors.New(errors.ErrCodeInvalidThreshold,
			"momentum_threshold, profit_target and stop_loss must be positive and min_days_to_expiry not negative")
	}

	strategy := &OptionsMomentum{
		lookback:          lookback,
		momentumThreshold: momentumThreshold / 100,
		profitTarget:      profitTarget / 100,
		stopLoss:          stopLoss / 100,
		minDaysToExpiry:   int(minDays),
	}
	strategy.Reset()

	return strategy, nil
}

func (o *OptionsMomentum) Name() string {
	return OptionsMomentumName
}

func (o *OptionsMomentum) Reset() {
	o.underlying = make([]float64, 0, o.lookback+2)
	o.holding = optional.None[heldContract]()
}

func (o *OptionsMomentum) Decide(event types.MarketEvent, previous optional.Option[types.MarketEvent]) optional.Option[types.Order] {
	o.trackUnderlying(event)

	trade, ok := event.(types.OptionTrade)
	if !ok {
		return optional.None[types.Order]()
	}

	if o.holding.IsSome() {
		held := o.holding.Unwrap()
		if trade.InstrumentID == held.instrumentID && o.shouldExit(held, trade) {
			o.holding = optional.None[heldContract]()

			return optional.Some(types.MarketSell(trade.Price()))
		}

		return optional.None[types.Order]()
	}

	if len(o.underlying) <= o.lookback || !o.tradable(trade) {
		return optional.None[types.Order]()
	}

	momentum := o.momentum()

	switch {
	case trade.Right == types.OptionRightCall && momentum > o.momentumThreshold:
	case trade.Right == types.OptionRightPut && momentum < -o.momentumThreshold:
	default:
		return optional.None[types.Order]()
	}

	o.holding = optional.Some(heldContract{
		instrumentID: trade.InstrumentID,
		entryPrice:   trade.Price(),
		expiration:   trade.Expiration,
	})

	return optional.Some(types.MarketBuy(trade.Price()))
}

func (o *OptionsMomentum) trackUnderlying(event types.MarketEvent) {
	price := 0.0

	switch e := event.(type) {
	case types.OptionTrade:
		price = e.UnderlyingMid()
	case types.QuoteTick:
		if e.Book.Valid() {
			price = e.Book.Mid()
		}
	}

	if price <= 0 {
		return
	}

	o.underlying = append(o.underlying, price)
	if len(o.underlying) > o.lookback+1 {
		o.underlying = o.underlying[1:]
	}
}

func (o *OptionsMomentum) momentum() float64 {
	current := o.underlying[len(o.underlying)-1]
	past := o.underlying[len(o.underlying)-1-o.lookback]

	if past == 0 {
		return 0
	}

	return (current - past) / past
}

func (o *OptionsMomentum) tradable(trade types.OptionTrade) bool {
	underlying := o.underlying[len(o.underlying)-1]

	if trade.Strike <= 0 || trade.Strike > underlying*maxStrikeMultiple {
		return false
	}

	if !trade.Expiration.After(trade.Timestamp) {
		return false
	}

	return trade.DaysToExpiry() > o.minDaysToExpiry
}

func (o *OptionsMomentum) shouldExit(held heldContract, trade types.OptionTrade) bool {
	if !held.expiration.After(trade.Timestamp) {
		return true
	}

	if trade.DaysToExpiry() <= o.minDaysToExpiry {
		return true
	}

	change := trade.Price()/held.entryPrice - 1

	return change >= o.profitTarget || change <= -o.stopLoss
}
