package transaction_cost

import "math"

// SpreadModel returns the full bid/ask spread in price units.
type SpreadModel interface {
	Calculate(price float64) float64
}

// FixedSpread is a constant spread, typically one tick.
type FixedSpread struct {
	Spread float64
}

func NewFixedSpread(spread float64) SpreadModel {
	return &FixedSpread{Spread: spread}
}

func (s *FixedSpread) Calculate(price float64) float64 {
	return s.Spread
}

// PercentageSpread is Percent of price, floored at Minimum.
type PercentageSpread struct {
	Percent float64
	Minimum float64
}

func NewPercentageSpread(percent float64, minimum float64) SpreadModel {
	return &PercentageSpread{Percent: percent, Minimum: minimum}
}

func (s *PercentageSpread) Calculate(price float64) float64 {
	if price <= 0 {
		return 0
	}

	return math.Max((s.Percent/100.0)*price, s.Minimum)
}

// OptionsBandSpread is Percent of price floored at Minimum dollars and
// capped at MaxPercent of price for very cheap contracts.
type OptionsBandSpread struct {
	Percent    float64
	Minimum    float64
	MaxPercent float64
}

func NewOptionsBandSpread(percent float64, minimum float64, maxPercent float64) SpreadModel {
	return &OptionsBandSpread{Percent: percent, Minimum: minimum, MaxPercent: maxPercent}
}

func (s *OptionsBandSpread) Calculate(price float64) float64 {
	if price <= 0 {
		return 0
	}

	spread := math.Max((s.Percent/100.0)*price, s.Minimum)
	if s.MaxPercent > 0 {
		spread = math.Min(spread, (s.MaxPercent/100.0)*price)
	}

	return spread
}
