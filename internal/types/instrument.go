package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

type InstrumentClass string

const (
	InstrumentClassEquity  InstrumentClass = "equity"
	InstrumentClassFutures InstrumentClass = "futures"
	InstrumentClassOptions InstrumentClass = "options"
)

var AllInstrumentClasses = []any{
	InstrumentClassEquity,
	InstrumentClassFutures,
	InstrumentClassOptions,
}

// OptionContractMultiplier is the number of underlying units per listed option contract.
const OptionContractMultiplier = 100.0

// futuresPointValues are dollars per point for the supported futures roots.
var futuresPointValues = map[string]float64{
	"NQ": 5.0,
	"ES": 12.5,
	"YM": 5.0,
	"CL": 10.0,
	"GC": 10.0,
	"SI": 25.0,
}

// Instrument describes what is being traded so PnL can be scaled without
// inferring anything from the symbol.
type Instrument struct {
	Symbol string          `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,description=Instrument symbol used in reports"`
	Class  InstrumentClass `yaml:"class" json:"class" validate:"required,oneof=equity futures options" jsonschema:"title=Class,description=Instrument class"`
	// PointValue is dollars per point of price movement. Only used for futures.
	PointValue float64 `yaml:"point_value" json:"point_value" validate:"gte=0" jsonschema:"title=Point Value,description=Dollars per point for futures,minimum=0"`
}

func EquityInstrument(symbol string) Instrument {
	return Instrument{Symbol: symbol, Class: InstrumentClassEquity}
}

func OptionsInstrument(symbol string) Instrument {
	return Instrument{Symbol: symbol, Class: InstrumentClassOptions}
}

// FuturesInstrument returns the descriptor for a known futures root such as "ES".
func FuturesInstrument(root string) (Instrument, error) {
	root = strings.ToUpper(root)

	pointValue, ok := futuresPointValues[root]
	if !ok {
		return Instrument{}, errors.Newf(errors.ErrCodeInvalidInstrument, "unknown futures root %q", root)
	}

	return Instrument{Symbol: root, Class: InstrumentClassFutures, PointValue: pointValue}, nil
}

// Multiplier converts a price difference times size into dollars.
func (i Instrument) Multiplier() float64 {
	switch i.Class {
	case InstrumentClassFutures:
		if i.PointValue > 0 {
			return i.PointValue
		}

		return 1.0
	case InstrumentClassOptions:
		return OptionContractMultiplier
	default:
		return 1.0
	}
}

func (i *Instrument) Validate() error {
	validate := validator.New()
	if err := validate.Struct(i); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInstrument, "invalid instrument", err)
	}

	if i.Class == InstrumentClassFutures && i.PointValue <= 0 {
		return errors.New(errors.ErrCodeInvalidInstrument, "futures instrument requires a positive point value")
	}

	return nil
}
