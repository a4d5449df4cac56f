package transaction_cost

import "math"

// SlippageModel returns the price impact of a fill in basis points of price.
type SlippageModel interface {
	ImpactBps(size float64, volume float64) float64
}

// participation is size over volume capped at 1. An event without volume is
// treated as full participation.
func participation(size float64, volume float64) float64 {
	if volume <= 0 || math.IsNaN(volume) {
		return 1.0
	}

	return math.Min(size/volume, 1.0)
}

// FixedSlippage is a constant impact in basis points.
type FixedSlippage struct {
	Bps float64
}

func NewFixedSlippage(bps float64) SlippageModel {
	return &FixedSlippage{Bps: bps}
}

func (s *FixedSlippage) ImpactBps(size float64, volume float64) float64 {
	return s.Bps
}

// LinearSlippage scales Factor bps by the participation rate.
type LinearSlippage struct {
	Factor float64
}

func NewLinearSlippage(factor float64) SlippageModel {
	return &LinearSlippage{Factor: factor}
}

func (s *LinearSlippage) ImpactBps(size float64, volume float64) float64 {
	return s.Factor * participation(size, volume)
}

// SquareRootSlippage scales Factor bps by the square root of participation.
type SquareRootSlippage struct {
	Factor float64
}

func NewSquareRootSlippage(factor float64) SlippageModel {
	return &SquareRootSlippage{Factor: factor}
}

func (s *SquareRootSlippage) ImpactBps(size float64, volume float64) float64 {
	return s.Factor * math.Sqrt(participation(size, volume))
}

// liquidVolume is the volume at or above which no illiquidity penalty applies.
const liquidVolume = 1_000_000.0

// MarketImpactSlippage combines permanent and temporary square root impact,
// scaled up for thin volume by 1 + LiquidityFactor * (1 - min(volume/1e6, 1)).
type MarketImpactSlippage struct {
	Permanent       float64
	Temporary       float64
	LiquidityFactor float64
}

func NewMarketImpactSlippage(permanent float64, temporary float64, liquidityFactor float64) SlippageModel {
	return &MarketImpactSlippage{Permanent: permanent, Temporary: temporary, LiquidityFactor: liquidityFactor}
}

func (s *MarketImpactSlippage) ImpactBps(size float64, volume float64) float64 {
	root := math.Sqrt(participation(size, volume))
	liquidity := 1.0 + s.LiquidityFactor*(1.0-math.Min(math.Max(volume, 0)/liquidVolume, 1.0))

	return (s.Permanent*root + s.Temporary*root) * liquidity
}

// optionsLiquidContracts is the contract volume at or above which an option
// print is considered liquid.
const optionsLiquidContracts = 1_000.0

// OptionsSlippage is BaseBps scaled up for thin contract volume plus a
// fraction of the typical bid/ask band, SpreadPercent of price.
type OptionsSlippage struct {
	BaseBps         float64
	LiquidityFactor float64
	SpreadFraction  float64
	SpreadPercent   float64
}

func NewOptionsSlippage(baseBps float64, liquidityFactor float64, spreadFraction float64, spreadPercent float64) SlippageModel {
	return &OptionsSlippage{
		BaseBps:         baseBps,
		LiquidityFactor: liquidityFactor,
		SpreadFraction:  spreadFraction,
		SpreadPercent:   spreadPercent,
	}
}

func (s *OptionsSlippage) ImpactBps(size float64, volume float64) float64 {
	liquidity := 1.0 + s.LiquidityFactor*(1.0-math.Min(math.Max(volume, 0)/optionsLiquidContracts, 1.0))

	// percent of price to bps
	return s.BaseBps*liquidity + s.SpreadFraction*s.SpreadPercent*100
}
