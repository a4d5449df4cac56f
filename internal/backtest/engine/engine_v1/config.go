package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/transaction_cost"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/internal/version"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

type BacktestEngineV1Config struct {
	InitialCapital   float64                    `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,description=Starting equity of every run in USD,exclusiveMinimum=0"`
	Exposure         float64                    `yaml:"exposure" json:"exposure" validate:"gt=0,lte=1" jsonschema:"title=Exposure,description=Fraction of equity committed to each entry,exclusiveMinimum=0,maximum=1"`
	Instrument       types.Instrument           `yaml:"instrument" json:"instrument" jsonschema:"title=Instrument,description=What is traded; selects the PnL multiplier"`
	TransactionCosts transaction_cost.Config    `yaml:"transaction_costs" json:"transaction_costs" jsonschema:"title=Transaction Costs,description=Commission slippage and spread models"`
	Workers          int                        `yaml:"workers" json:"workers" validate:"gte=0" jsonschema:"title=Workers,description=Concurrent runs in a sweep; 0 uses every CPU,minimum=0"`
	LimitOrderTTL    int                        `yaml:"limit_order_ttl" json:"limit_order_ttl" validate:"gte=0" jsonschema:"title=Limit Order TTL,description=Events a limit order stays pending; 0 keeps it until the series ends,minimum=0"`
	StartTime        optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the replayed period"`
	EndTime          optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the replayed period"`
	EngineVersion    string                     `yaml:"engine_version" json:"engine_version" jsonschema:"title=Engine Version,description=Engine version the configuration was written for"`
}

// UnmarshalYAML implements custom unmarshaling for BacktestEngineV1Config.
func (c *BacktestEngineV1Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		InitialCapital   float64                 `yaml:"initial_capital"`
		Exposure         *float64                `yaml:"exposure"`
		Instrument       *types.Instrument       `yaml:"instrument"`
		TransactionCosts transaction_cost.Config `yaml:"transaction_costs"`
		Workers          int                     `yaml:"workers"`
		LimitOrderTTL    int                     `yaml:"limit_order_ttl"`
		StartTime        *time.Time              `yaml:"start_time"`
		EndTime          *time.Time              `yaml:"end_time"`
		EngineVersion    string                  `yaml:"engine_version"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	*c = EmptyConfig()
	c.InitialCapital = config.InitialCapital
	c.TransactionCosts = config.TransactionCosts
	c.Workers = config.Workers
	c.LimitOrderTTL = config.LimitOrderTTL
	c.EngineVersion = config.EngineVersion

	if config.Exposure != nil {
		c.Exposure = *config.Exposure
	}

	if config.Instrument != nil {
		c.Instrument = *config.Instrument
	}

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// MarshalYAML writes unset optional times as absent keys so the output
// reads back through UnmarshalYAML.
func (c BacktestEngineV1Config) MarshalYAML() (interface{}, error) {
	type Config struct {
		InitialCapital   float64                 `yaml:"initial_capital"`
		Exposure         float64                 `yaml:"exposure"`
		Instrument       types.Instrument        `yaml:"instrument"`
		TransactionCosts transaction_cost.Config `yaml:"transaction_costs"`
		Workers          int                     `yaml:"workers"`
		LimitOrderTTL    int                     `yaml:"limit_order_ttl"`
		StartTime        *time.Time              `yaml:"start_time,omitempty"`
		EndTime          *time.Time              `yaml:"end_time,omitempty"`
		EngineVersion    string                  `yaml:"engine_version,omitempty"`
	}

	config := Config{
		InitialCapital:   c.InitialCapital,
		Exposure:         c.Exposure,
		Instrument:       c.Instrument,
		TransactionCosts: c.TransactionCosts,
		Workers:          c.Workers,
		LimitOrderTTL:    c.LimitOrderTTL,
		StartTime:        nil,
		EndTime:          nil,
		EngineVersion:    c.EngineVersion,
	}

	if c.StartTime.IsSome() {
		start := c.StartTime.Unwrap()
		config.StartTime = &start
	}

	if c.EndTime.IsSome() {
		end := c.EndTime.Unwrap()
		config.EndTime = &end
	}

	return config, nil
}

// Validate checks field ranges, the instrument, the cost model, the time
// window and engine version compatibility.
func (c *BacktestEngineV1Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid backtest configuration", err)
	}

	if err := c.Instrument.Validate(); err != nil {
		return err
	}

	if _, err := c.TransactionCosts.Build(); err != nil {
		return err
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidPeriod, "end_time is before start_time")
	}

	if c.EngineVersion != "" {
		if err := version.CheckVersionCompatibility(version.GetVersion(), c.EngineVersion); err != nil {
			return errors.Wrap(errors.ErrCodeBacktestConfigError, "configuration targets an incompatible engine", err)
		}
	}

	return nil
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config.
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if strings.Contains(t.String(), "types.InstrumentClass") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: types.AllInstrumentClasses,
				}
			}

			if strings.Contains(t.String(), "transaction_cost.Preset") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: transaction_cost.AllPresets,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config.
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// TestConfig returns a valid equity configuration for tests.
func TestConfig(startTime time.Time, endTime time.Time, preset transaction_cost.Preset) BacktestEngineV1Config {
	config := EmptyConfig()
	config.InitialCapital = 100000
	config.TransactionCosts.Preset = preset
	config.StartTime = optional.Some(startTime)
	config.EndTime = optional.Some(endTime)

	return config
}

// EmptyConfig returns a BacktestEngineV1Config with default values.
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital:   0,
		Exposure:         1.0,
		Instrument:       types.EquityInstrument(""),
		TransactionCosts: transaction_cost.Config{Preset: transaction_cost.PresetZero},
		Workers:          0,
		LimitOrderTTL:    0,
		StartTime:        optional.None[time.Time](),
		EndTime:          optional.None[time.Time](),
		EngineVersion:    "",
	}
}
