package engine

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/internal/logger"
	"github.com/rxtech-lab/inkback/internal/types"
	"go.uber.org/zap"
)

// pendingOrder is an order waiting for a later event. Orders decided on an
// option trade only fill against later trades of the same contract.
type pendingOrder struct {
	order    types.Order
	placedAt int
	contract optional.Option[uint32]
}

// OrderFillSimulator turns orders emitted while Neutral into entries
// against later events. It never fills an order against the event that
// produced it.
type OrderFillSimulator struct {
	ledger        *Ledger
	exposure      float64
	limitOrderTTL int
	anomalies     *types.Anomalies
	log           *logger.Logger

	market    optional.Option[pendingOrder]
	limits    []pendingOrder
	cancelled int
}

// NewOrderFillSimulator creates a simulator sizing fills at exposure of the
// ledger's equity. A limitOrderTTL of 0 keeps limit orders until the series ends.
func NewOrderFillSimulator(ledger *Ledger, exposure float64, limitOrderTTL int, anomalies *types.Anomalies, log *logger.Logger) *OrderFillSimulator {
	return &OrderFillSimulator{
		ledger:        ledger,
		exposure:      exposure,
		limitOrderTTL: limitOrderTTL,
		anomalies:     anomalies,
		log:           log,
		market:        optional.None[pendingOrder](),
		limits:        nil,
		cancelled:     0,
	}
}

// Submit queues an entry order decided on the event at index. A market order
// replaces any market order still pending.
func (s *OrderFillSimulator) Submit(order types.Order, index int, event types.MarketEvent) {
	pending := pendingOrder{
		order:    order,
		placedAt: index,
		contract: optional.None[uint32](),
	}

	if trade, ok := event.(types.OptionTrade); ok {
		pending.contract = optional.Some(trade.InstrumentID)
	}

	if order.Kind.IsLimit() {
		s.limits = append(s.limits, pending)

		return
	}

	if s.market.IsSome() {
		s.log.Debug("Replacing pending market order",
			zap.String("previous", string(s.market.Unwrap().order.Kind)),
			zap.String("next", string(order.Kind)),
		)
	}

	s.market = optional.Some(pending)
}

// Step fills pending orders against the event at index. Limit orders are
// checked first; at most one of them fills per step.
func (s *OrderFillSimulator) Step(index int, event types.MarketEvent) {
	s.expireLimits(index)
	s.stepLimits(index, event)
	s.stepMarket(index, event)
}

// CancelAll drops every pending order and returns the number of orders
// cancelled over the whole run.
func (s *OrderFillSimulator) CancelAll() int {
	s.cancelled += len(s.limits)
	s.limits = nil

	if s.market.IsSome() {
		s.cancelled++
		s.market = optional.None[pendingOrder]()
	}

	return s.cancelled
}

func (s *OrderFillSimulator) PendingLimitOrders() int {
	return len(s.limits)
}

func (s *OrderFillSimulator) HasPendingMarketOrder() bool {
	return s.market.IsSome()
}

func (s *OrderFillSimulator) expireLimits(index int) {
	if s.limitOrderTTL <= 0 {
		return
	}

	kept := s.limits[:0]

	for _, pending := range s.limits {
		if index-pending.placedAt > s.limitOrderTTL {
			s.cancelled++

			continue
		}

		kept = append(kept, pending)
	}

	s.limits = kept
}

func (s *OrderFillSimulator) stepLimits(index int, event types.MarketEvent) {
	for i, pending := range s.limits {
		if !canFill(pending, index, event) || !limitCrossed(pending.order, event) {
			continue
		}

		s.limits = append(s.limits[:i], s.limits[i+1:]...)

		if !s.ledger.Position().IsNeutral() {
			s.anomalies.SkippedFills++
			s.log.Warn("Cancelling limit order eligible while a position is open",
				zap.String("kind", string(pending.order.Kind)),
				zap.Float64("limit", pending.order.Price),
				zap.Time("time", event.Time()),
			)

			return
		}

		s.fill(pending.order, pending.order.Price, event)

		return
	}
}

func (s *OrderFillSimulator) stepMarket(index int, event types.MarketEvent) {
	if s.market.IsNone() {
		return
	}

	pending := s.market.Unwrap()
	if !canFill(pending, index, event) {
		return
	}

	s.market = optional.None[pendingOrder]()

	if !s.ledger.Position().IsNeutral() {
		s.anomalies.SkippedFills++
		s.log.Warn("Skipping market fill while a position is open",
			zap.String("kind", string(pending.order.Kind)),
			zap.Time("time", event.Time()),
		)

		return
	}

	s.fill(pending.order, types.RepresentativePrice(event), event)
}

func (s *OrderFillSimulator) fill(order types.Order, price float64, event types.MarketEvent) {
	size := s.size(price)
	if size <= 0 {
		s.anomalies.ZeroSizeFills++
		s.log.Warn("Rejecting fill with no size",
			zap.String("kind", string(order.Kind)),
			zap.Float64("price", price),
			zap.Float64("equity", s.ledger.Equity()),
			zap.Time("time", event.Time()),
		)

		return
	}

	s.ledger.Open(order.Kind.Side(), price, size, event.TradedVolume(), event.Time())
}

// size is floor(equity * exposure / (price * multiplier)).
func (s *OrderFillSimulator) size(price float64) float64 {
	notional := price * s.ledger.instrument.Multiplier()
	if notional <= 0 || !isFinite(notional) {
		return 0
	}

	size := math.Floor(s.ledger.Equity() * s.exposure / notional)
	if !isFinite(size) {
		return 0
	}

	return size
}

func canFill(pending pendingOrder, index int, event types.MarketEvent) bool {
	if index <= pending.placedAt {
		return false
	}

	if pending.contract.IsNone() {
		return true
	}

	trade, ok := event.(types.OptionTrade)

	return ok && trade.InstrumentID == pending.contract.Unwrap()
}

func limitCrossed(order types.Order, event types.MarketEvent) bool {
	if order.Kind == types.OrderKindLimitBuy {
		return event.LowPrice() <= order.Price
	}

	return event.HighPrice() >= order.Price
}
