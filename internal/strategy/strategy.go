package strategy

import (
	"sort"
	"sync"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

// Strategy turns market events into orders.
//
// Decide is called once per event in time order and must be deterministic
// for a given parameter set and event sequence. A strategy may keep state
// between calls but is never shared between runs.
type Strategy interface {
	// Name returns the registered name of the strategy.
	Name() string
	// Decide optionally returns an order for the current event.
	Decide(event types.MarketEvent, previous optional.Option[types.MarketEvent]) optional.Option[types.Order]
	// Reset clears all state so the instance can replay a series from the start.
	Reset()
}

// Factory builds a fresh strategy from parameters. It returns a
// configuration error when a required parameter is missing or invalid.
type Factory func(params types.StrategyParams) (Strategy, error)

// Registry maps strategy names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		mu:        sync.RWMutex{},
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry returns a registry holding every built in strategy.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(MovingAverageCrossName, NewMovingAverageCross)
	registry.Register(FootprintImbalanceName, NewFootprintImbalance)
	registry.Register(OptionsMomentumName, NewOptionsMomentum)

	return registry
}

func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
}

func (r *Registry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnsupportedStrategy, "unknown strategy %q", name)
	}

	return factory, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// exitTriggered reports whether a take profit or stop loss, both fractions
// of entry, is hit at price. A zero threshold disables that side.
func exitTriggered(side types.PositionSide, entry float64, price float64, takeProfit float64, stopLoss float64) bool {
	switch side {
	case types.PositionSideLong:
		return (takeProfit > 0 && price >= entry*(1+takeProfit)) || (stopLoss > 0 && price <= entry*(1-stopLoss))
	case types.PositionSideShort:
		return (takeProfit > 0 && price <= entry*(1-takeProfit)) || (stopLoss > 0 && price >= entry*(1+stopLoss))
	default:
		return false
	}
}

// closingOrder is the market order that flattens side at price.
func closingOrder(side types.PositionSide, price float64) types.Order {
	if side == types.PositionSideLong {
		return types.MarketSell(price)
	}

	return types.MarketBuy(price)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	total := 0.0
	for _, value := range values {
		total += value
	}

	return total / float64(len(values))
}
