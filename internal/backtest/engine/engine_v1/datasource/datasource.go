package datasource

import (
	"context"
	"database/sql"
	"iter"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

// DataSource supplies a time ordered series of market events.
//
// Every call to Open starts an independent pass, so one source can feed many
// concurrent runs. Rows that cannot be decoded are yielded as errors with
// errors.ErrCodeMalformedEvent and the pass continues. Any other error ends
// the pass.
type DataSource interface {
	// Open starts a new pass over the series.
	Open(ctx context.Context) iter.Seq2[types.MarketEvent, error]
	// Count returns the number of rows a pass will visit.
	Count(ctx context.Context) (int, error)
	// Close releases any resources held by the source.
	Close() error
}

// Options selects which rows of a SQL backed source are replayed.
type Options struct {
	// Schema decides the columns read and the event variant produced.
	Schema types.Schema
	// Table is the table or view holding the series.
	Table string
	// Symbol restricts the series to one symbol when set.
	Symbol string
	Start  optional.Option[time.Time]
	End    optional.Option[time.Time]
}

func DefaultOptions() Options {
	return Options{
		Schema: types.SchemaOHLCV,
		Table:  "market_data",
		Symbol: "",
		Start:  optional.None[time.Time](),
		End:    optional.None[time.Time](),
	}
}

// IsMalformed reports whether err is a per row error after which the pass continues.
func IsMalformed(err error) bool {
	return errors.HasCode(err, errors.ErrCodeMalformedEvent)
}

// schemaColumns lists the columns read for each schema, in scan order.
func schemaColumns(schema types.Schema) ([]string, error) {
	switch schema {
	case types.SchemaOHLCV, "":
		return []string{"time", "symbol", "open", "high", "low", "close", "volume"}, nil
	case types.SchemaTrade:
		return []string{"time", "symbol", "price", "size"}, nil
	case types.SchemaMBP1:
		return []string{"time", "symbol", "price", "size", "bid_price", "ask_price", "bid_size", "ask_size"}, nil
	case types.SchemaOptionTrade:
		return []string{
			"time", "symbol", "instrument_id", "price", "size", "strike_price", "expiration",
			"option_type", "underlying_bid", "underlying_ask", "underlying_price",
		}, nil
	case types.SchemaFootprint:
		return []string{"time", "symbol", "open", "high", "low", "close", "volume", "levels"}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedSchema, "unsupported schema %q", schema)
	}
}

func applyFilters(builder squirrel.SelectBuilder, options Options) squirrel.SelectBuilder {
	if options.Symbol != "" {
		builder = builder.Where(squirrel.Eq{"symbol": options.Symbol})
	}

	if options.Start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"time": options.Start.Unwrap()})
	}

	if options.End.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"time": options.End.Unwrap()})
	}

	return builder
}

// buildEventQuery renders the select for a pass in time order.
func buildEventQuery(sq squirrel.StatementBuilderType, options Options) (string, []any, error) {
	columns, err := schemaColumns(options.Schema)
	if err != nil {
		return "", nil, err
	}

	builder := applyFilters(sq.Select(columns...).From(options.Table), options).OrderBy("time ASC")

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build market data query", err)
	}

	return query, args, nil
}

func buildCountQuery(sq squirrel.StatementBuilderType, options Options) (string, []any, error) {
	builder := applyFilters(sq.Select("COUNT(*)").From(options.Table), options)

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	return query, args, nil
}

// rowScanner is satisfied by both *sql.Rows and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent decodes the current row into the variant for schema and
// validates it. Decoding failures are malformed event errors.
func scanEvent(schema types.Schema, row rowScanner) (types.MarketEvent, error) {
	event, err := decodeRow(schema, row)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeMalformedEvent) {
			return nil, err
		}

		return nil, errors.Wrap(errors.ErrCodeMalformedEvent, "failed to scan market data row", err)
	}

	if err := types.ValidateEvent(event); err != nil {
		return nil, err
	}

	return event, nil
}

func decodeRow(schema types.Schema, row rowScanner) (types.MarketEvent, error) {
	switch schema {
	case types.SchemaTrade:
		var tick types.Tick
		if err := row.Scan(&tick.Timestamp, &tick.Symbol, &tick.TradePrice, &tick.Size); err != nil {
			return nil, err
		}

		return tick, nil
	case types.SchemaMBP1:
		var quote types.QuoteTick
		if err := row.Scan(
			&quote.Timestamp, &quote.Symbol, &quote.TradePrice, &quote.Size,
			&quote.Book.BidPrice, &quote.Book.AskPrice, &quote.Book.BidSize, &quote.Book.AskSize,
		); err != nil {
			return nil, err
		}

		return quote, nil
	case types.SchemaOptionTrade:
		var (
			option       types.OptionTrade
			instrumentID int64
			right        string
		)

		if err := row.Scan(
			&option.Timestamp, &option.Symbol, &instrumentID, &option.TradePrice, &option.Size,
			&option.Strike, &option.Expiration, &right,
			&option.Underlying.BidPrice, &option.Underlying.AskPrice, &option.UnderlyingPrice,
		); err != nil {
			return nil, err
		}

		option.InstrumentID = uint32(instrumentID)
		option.Right = types.OptionRight(right)

		if option.Right != types.OptionRightCall && option.Right != types.OptionRightPut {
			return nil, errors.Newf(errors.ErrCodeMalformedEvent, "invalid option type %q at %s", right, option.Timestamp)
		}

		return option, nil
	case types.SchemaFootprint:
		var (
			footprint types.Footprint
			levels    string
		)

		if err := scanBar(row, &footprint.Bar, &levels); err != nil {
			return nil, err
		}

		decoded, err := types.DecodeFootprintLevels([]byte(levels))
		if err != nil {
			return nil, err
		}

		footprint.Levels = decoded

		return footprint, nil
	default:
		var bar types.Bar
		if err := scanBar(row, &bar); err != nil {
			return nil, err
		}

		return bar, nil
	}
}

// scanBar reads an OHLCV row followed by extra columns. A NULL high or low
// takes the close.
func scanBar(row rowScanner, bar *types.Bar, extra ...any) error {
	var high, low sql.NullFloat64

	dest := append([]any{&bar.Timestamp, &bar.Symbol, &bar.Open, &high, &low, &bar.Close, &bar.Volume}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}

	bar.High = bar.Close
	if high.Valid {
		bar.High = high.Float64
	}

	bar.Low = bar.Close
	if low.Valid {
		bar.Low = low.Float64
	}

	return nil
}
