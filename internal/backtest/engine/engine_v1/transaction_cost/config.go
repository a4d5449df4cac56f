package transaction_cost

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

const (
	CommissionFixed      = "fixed"
	CommissionPerUnit    = "per_unit"
	CommissionPercentage = "percentage"
	CommissionTiered     = "tiered"

	SlippageFixedBps     = "fixed_bps"
	SlippageLinear       = "linear"
	SlippageSquareRoot   = "square_root"
	SlippageMarketImpact = "market_impact"
	SlippageOptions      = "options"

	SpreadFixed       = "fixed"
	SpreadPercentage  = "percentage"
	SpreadOptionsBand = "options_band"
)

type CommissionConfig struct {
	Model   string           `yaml:"model" json:"model" validate:"required,oneof=fixed per_unit percentage tiered" jsonschema:"enum=fixed,enum=per_unit,enum=percentage,enum=tiered"`
	Value   float64          `yaml:"value" json:"value" validate:"gte=0" jsonschema:"description=Fee for fixed or rate for per_unit or percent for percentage"`
	Minimum float64          `yaml:"minimum" json:"minimum" validate:"gte=0" jsonschema:"description=Minimum fee per fill for per_unit"`
	Tiers   []CommissionTier `yaml:"tiers" json:"tiers" validate:"required_if=Model tiered,dive"`
}

type SlippageConfig struct {
	Model           string  `yaml:"model" json:"model" validate:"required,oneof=fixed_bps linear square_root market_impact options" jsonschema:"enum=fixed_bps,enum=linear,enum=square_root,enum=market_impact,enum=options"`
	Value           float64 `yaml:"value" json:"value" validate:"gte=0" jsonschema:"description=Impact in basis points or impact factor"`
	Permanent       float64 `yaml:"permanent" json:"permanent" validate:"gte=0"`
	Temporary       float64 `yaml:"temporary" json:"temporary" validate:"gte=0"`
	LiquidityFactor float64 `yaml:"liquidity_factor" json:"liquidity_factor" validate:"gte=0"`
	SpreadFraction  float64 `yaml:"spread_fraction" json:"spread_fraction" validate:"gte=0,lte=1" jsonschema:"description=Share of the bid/ask band paid as slippage for options"`
	SpreadPercent   float64 `yaml:"spread_percent" json:"spread_percent" validate:"gte=0" jsonschema:"description=Typical bid/ask band in percent of price for options"`
}

type SpreadConfig struct {
	Model   string  `yaml:"model" json:"model" validate:"required,oneof=fixed percentage options_band" jsonschema:"enum=fixed,enum=percentage,enum=options_band"`
	Value   float64 `yaml:"value" json:"value" validate:"gte=0"`
	Minimum float64 `yaml:"minimum" json:"minimum" validate:"gte=0"`
	Maximum float64 `yaml:"maximum" json:"maximum" validate:"gte=0" jsonschema:"description=Cap in percent of price for options_band"`
}

// Config selects a cost model from configuration. Explicit model blocks
// override the corresponding part of the preset.
type Config struct {
	Preset     Preset            `yaml:"preset" json:"preset" jsonschema:"title=Preset,description=Named cost model used as the base"`
	TickSize   float64           `yaml:"tick_size" json:"tick_size" validate:"gte=0" jsonschema:"title=Tick Size,description=Tick size used by presets quoting a one tick spread"`
	Commission *CommissionConfig `yaml:"commission,omitempty" json:"commission,omitempty"`
	Slippage   *SlippageConfig   `yaml:"slippage,omitempty" json:"slippage,omitempty"`
	Spread     *SpreadConfig     `yaml:"spread,omitempty" json:"spread,omitempty"`
}

// Build validates the config and assembles the cost model.
func (c Config) Build() (TransactionCosts, error) {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return TransactionCosts{}, errors.Wrap(errors.ErrCodeInvalidCostModel, "invalid transaction cost configuration", err)
	}

	if c.Preset != "" && !isKnownPreset(c.Preset) {
		return TransactionCosts{}, errors.Newf(errors.ErrCodeInvalidCostModel, "unknown transaction cost preset %q", c.Preset)
	}

	costs := GetPreset(c.Preset, c.TickSize)

	if c.Commission != nil {
		costs.Commission = c.Commission.build()
	}

	if c.Slippage != nil {
		costs.Slippage = c.Slippage.build()
	}

	if c.Spread != nil {
		costs.Spread = c.Spread.build()
	}

	return costs, nil
}

func isKnownPreset(preset Preset) bool {
	for _, known := range AllPresets {
		if known == preset {
			return true
		}
	}

	return false
}

func (c *CommissionConfig) build() CommissionModel {
	switch c.Model {
	case CommissionPerUnit:
		return NewPerUnitCommission(c.Value, c.Minimum)
	case CommissionPercentage:
		return NewPercentageCommission(c.Value)
	case CommissionTiered:
		return NewTieredCommission(c.Tiers)
	default:
		return NewFixedCommission(c.Value)
	}
}

func (c *SlippageConfig) build() SlippageModel {
	switch c.Model {
	case SlippageLinear:
		return NewLinearSlippage(c.Value)
	case SlippageSquareRoot:
		return NewSquareRootSlippage(c.Value)
	case SlippageMarketImpact:
		return NewMarketImpactSlippage(c.Permanent, c.Temporary, c.LiquidityFactor)
	case SlippageOptions:
		return NewOptionsSlippage(c.Value, c.LiquidityFactor, c.SpreadFraction, c.SpreadPercent)
	default:
		return NewFixedSlippage(c.Value)
	}
}

func (c *SpreadConfig) build() SpreadModel {
	switch c.Model {
	case SpreadPercentage:
		return NewPercentageSpread(c.Value, c.Minimum)
	case SpreadOptionsBand:
		return NewOptionsBandSpread(c.Value, c.Minimum, c.Maximum)
	default:
		return NewFixedSpread(c.Value)
	}
}
