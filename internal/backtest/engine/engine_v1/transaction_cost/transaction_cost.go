package transaction_cost

// TransactionCosts bundles one commission, one slippage and one spread model.
// It holds no mutable state and is shared read-only by concurrent runs.
type TransactionCosts struct {
	Commission CommissionModel
	Slippage   SlippageModel
	Spread     SpreadModel
}

func NewTransactionCosts(commission CommissionModel, slippage SlippageModel, spread SpreadModel) TransactionCosts {
	return TransactionCosts{
		Commission: commission,
		Slippage:   slippage,
		Spread:     spread,
	}
}

// SlippageCost is the dollar slippage of a fill of size at price.
func (t TransactionCosts) SlippageCost(price float64, size float64, volume float64) float64 {
	if price <= 0 {
		return 0
	}

	return (t.Slippage.ImpactBps(size, volume) / 10000.0) * price * size
}

// HalfSpread is half the quoted spread at price.
func (t TransactionCosts) HalfSpread(price float64) float64 {
	if price <= 0 {
		return 0
	}

	return t.Spread.Calculate(price) / 2.0
}

// CalculateEntryCost is commission + slippage + half spread for opening a position.
func (t TransactionCosts) CalculateEntryCost(price float64, size float64, volume float64) float64 {
	return t.fillCost(price, size, volume)
}

// CalculateExitCost is commission + slippage + half spread for closing a position.
func (t TransactionCosts) CalculateExitCost(price float64, size float64, volume float64) float64 {
	return t.fillCost(price, size, volume)
}

func (t TransactionCosts) fillCost(price float64, size float64, volume float64) float64 {
	return t.Commission.Calculate(price, size) + t.SlippageCost(price, size, volume) + t.HalfSpread(price)
}

// AdjustFillPrice moves price against the trader by the slippage impact and
// half the spread: up for buys, down for sells.
func (t TransactionCosts) AdjustFillPrice(price float64, size float64, volume float64, isBuy bool) float64 {
	if price <= 0 {
		return price
	}

	impact := (t.Slippage.ImpactBps(size, volume)/10000.0)*price + t.HalfSpread(price)
	if isBuy {
		return price + impact
	}

	return price - impact
}

type Preset string

const (
	PresetZero              Preset = "zero"
	PresetRetailStock       Preset = "retail_stock"
	PresetEquities          Preset = "equities"
	PresetFutures           Preset = "futures"
	PresetOptions           Preset = "options"
	PresetInteractiveBroker Preset = "interactive_broker"
)

var AllPresets = []any{
	PresetZero,
	PresetRetailStock,
	PresetEquities,
	PresetFutures,
	PresetOptions,
	PresetInteractiveBroker,
}

// ZeroCosts charges nothing and leaves fill prices untouched.
func ZeroCosts() TransactionCosts {
	return NewTransactionCosts(NewFixedCommission(0), NewFixedSlippage(0), NewFixedSpread(0))
}

// RetailStockCosts models a zero commission broker: 2 bps slippage and a 1 bp spread.
func RetailStockCosts() TransactionCosts {
	return NewTransactionCosts(NewFixedCommission(0), NewFixedSlippage(2.0), NewPercentageSpread(0.01, 0))
}

// EquitiesCosts models a per share broker with liquidity sensitive slippage and a one tick spread.
func EquitiesCosts(tickSize float64) TransactionCosts {
	return NewTransactionCosts(NewInteractiveBrokerCommission(), NewSquareRootSlippage(5.0), NewFixedSpread(tickSize))
}

// FuturesCosts is $2.50 per fill, 5 bps linear slippage and a one tick spread.
func FuturesCosts(tickSize float64) TransactionCosts {
	return NewTransactionCosts(NewFixedCommission(2.50), NewLinearSlippage(5.0), NewFixedSpread(tickSize))
}

// OptionsCosts is $0.65 per contract, 10 bps slippage plus a quarter of the
// band, and a 5% band floored at five cents and capped at 25%.
func OptionsCosts() TransactionCosts {
	return NewTransactionCosts(
		NewPerUnitCommission(0.65, 0),
		NewOptionsSlippage(10.0, 1.0, 0.25, 5.0),
		NewOptionsBandSpread(5.0, 0.05, 25.0),
	)
}

// InteractiveBrokerCosts charges the per share commission only.
func InteractiveBrokerCosts() TransactionCosts {
	return NewTransactionCosts(NewInteractiveBrokerCommission(), NewFixedSlippage(0), NewFixedSpread(0))
}

// GetPreset returns the named cost model. tickSize is used by the presets
// that quote a one tick spread. Unknown presets fall back to zero costs.
func GetPreset(preset Preset, tickSize float64) TransactionCosts {
	switch preset {
	case PresetRetailStock:
		return RetailStockCosts()
	case PresetEquities:
		return EquitiesCosts(tickSize)
	case PresetFutures:
		return FuturesCosts(tickSize)
	case PresetOptions:
		return OptionsCosts()
	case PresetInteractiveBroker:
		return InteractiveBrokerCosts()
	case PresetZero:
		return ZeroCosts()
	default:
		return ZeroCosts()
	}
}
