package transaction_cost

// CommissionModel returns the broker fee in USD for one fill.
type CommissionModel interface {
	Calculate(price float64, size float64) float64
}

// FixedCommission charges the same fee per fill regardless of size.
type FixedCommission struct {
	Fee float64
}

func NewFixedCommission(fee float64) CommissionModel {
	return &FixedCommission{Fee: fee}
}

func (c *FixedCommission) Calculate(price float64, size float64) float64 {
	return c.Fee
}

// PerUnitCommission charges Rate per share or contract with an optional per fill minimum.
type PerUnitCommission struct {
	Rate    float64
	Minimum float64
}

func NewPerUnitCommission(rate float64, minimum float64) CommissionModel {
	return &PerUnitCommission{Rate: rate, Minimum: minimum}
}

// NewInteractiveBrokerCommission is $0.005 per share with a $1.00 minimum.
func NewInteractiveBrokerCommission() CommissionModel {
	return NewPerUnitCommission(0.005, 1.0)
}

func (c *PerUnitCommission) Calculate(price float64, size float64) float64 {
	fee := c.Rate * size
	if fee < c.Minimum {
		return c.Minimum
	}

	return fee
}

// PercentageCommission charges Percent of the notional, e.g. 0.1 for 0.1%.
type PercentageCommission struct {
	Percent float64
}

func NewPercentageCommission(percent float64) CommissionModel {
	return &PercentageCommission{Percent: percent}
}

func (c *PercentageCommission) Calculate(price float64, size float64) float64 {
	return (c.Percent / 100.0) * price * size
}

// CommissionTier applies Rate to notionals up to and including Threshold.
type CommissionTier struct {
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"gte=0"`
	Rate      float64 `yaml:"rate" json:"rate" validate:"gte=0"`
}

// TieredCommission charges rate times notional using the first tier whose
// threshold covers the notional, or the last tier above every threshold.
// Tiers must be ordered by threshold.
type TieredCommission struct {
	Tiers []CommissionTier
}

func NewTieredCommission(tiers []CommissionTier) CommissionModel {
	return &TieredCommission{Tiers: tiers}
}

func (c *TieredCommission) Calculate(price float64, size float64) float64 {
	if len(c.Tiers) == 0 {
		return 0
	}

	notional := price * size
	for _, tier := range c.Tiers {
		if notional <= tier.Threshold {
			return tier.Rate * notional
		}
	}

	return c.Tiers[len(c.Tiers)-1].Rate * notional
}
