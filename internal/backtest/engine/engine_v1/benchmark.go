package engine

import (
	"context"
	"time"

	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

// BenchmarkLabel labels the buy and hold result of a sweep.
const BenchmarkLabel = "Buy & Hold"

// benchmarkPrice is the price the benchmark holds at event. Option trades
// are valued on their underlying.
func benchmarkPrice(event types.MarketEvent) float64 {
	if option, ok := event.(types.OptionTrade); ok {
		return option.UnderlyingMid()
	}

	return event.Price()
}

// benchmarkMultiplier scales futures by their point value. Options
// benchmarks hold the underlying, so only futures are scaled.
func benchmarkMultiplier(instrument types.Instrument) float64 {
	if instrument.Class == types.InstrumentClassFutures {
		return instrument.Multiplier()
	}

	return 1.0
}

// ComputeBenchmark buys startingEquity × exposure worth of the instrument at
// the first usable price and holds it to the last one, without costs. The
// result carries one trade closed with types.ExitReasonEnd.
func ComputeBenchmark(ctx context.Context, source datasource.DataSource, startingEquity float64, exposure float64, instrument types.Instrument) (types.BacktestResult, error) {
	if source == nil {
		return types.BacktestResult{}, errors.New(errors.ErrCodeBacktestNoDatasource, "no data source")
	}

	multiplier := benchmarkMultiplier(instrument)
	equityCurve := []float64{startingEquity}
	anomalies := types.Anomalies{}

	var (
		entryPrice float64
		entryTime  time.Time
		lastPrice  float64
		lastTime   time.Time
		size       float64
		events     int
	)

	for event, err := range source.Open(ctx) {
		if err != nil {
			if datasource.IsMalformed(err) {
				anomalies.MalformedEvents++

				continue
			}

			return types.BacktestResult{}, err
		}

		price := benchmarkPrice(event)
		if !(price > 0) || !isFinite(price) {
			continue
		}

		events++

		if size == 0 {
			entryPrice = price
			entryTime = event.Time()
			size = startingEquity * exposure / entryPrice
		}

		lastPrice = price
		lastTime = event.Time()

		equityCurve = append(equityCurve, (price-entryPrice)*size*multiplier+startingEquity)
	}

	if events == 0 {
		return types.BacktestResult{}, errors.New(errors.ErrCodeNoDataFound, "no usable prices for the benchmark")
	}

	pnl := (lastPrice - entryPrice) * size * multiplier
	trade := types.Trade{
		EntryTime:        entryTime,
		ExitTime:         lastTime,
		EntryPrice:       entryPrice,
		ExitPrice:        lastPrice,
		Size:             size,
		Side:             types.PositionSideLong,
		PnL:              pnl,
		PnLPercent:       (lastPrice/entryPrice - 1) * 100,
		ExitReason:       types.ExitReasonEnd,
		TransactionCosts: 0,
	}

	result := CalculateMetrics(startingEquity, equityCurve, []types.Trade{trade})
	result.Label = BenchmarkLabel
	result.EventsProcessed = events
	result.OpenPosition = types.NeutralPosition()
	result.Anomalies = anomalies

	return result, nil
}
