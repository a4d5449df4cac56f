package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moznion/go-optional"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/inkback/internal/backtest/engine"
	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/transaction_cost"
	"github.com/rxtech-lab/inkback/internal/logger"
	"github.com/rxtech-lab/inkback/internal/strategy"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// RunSettings configures a single backtest run.
type RunSettings struct {
	Label          string
	Parameters     types.StrategyParams
	StartingEquity float64
	// Exposure is the fraction of equity committed per entry, in (0, 1].
	Exposure      float64
	Instrument    types.Instrument
	Costs         transaction_cost.TransactionCosts
	LimitOrderTTL int
	OnProcessData optional.Option[engine.OnProcessDataCallback]
}

func (s RunSettings) validate() error {
	if !(s.StartingEquity > 0) || !isFinite(s.StartingEquity) {
		return errors.Newf(errors.ErrCodeBacktestConfigError, "starting equity must be positive, got %v", s.StartingEquity)
	}

	if !(s.Exposure > 0 && s.Exposure <= 1) {
		return errors.Newf(errors.ErrCodeBacktestConfigError, "exposure must be within (0, 1], got %v", s.Exposure)
	}

	if s.Costs.Commission == nil || s.Costs.Slippage == nil || s.Costs.Spread == nil {
		return errors.New(errors.ErrCodeInvalidCostModel, "transaction costs need a commission, slippage and spread model")
	}

	return nil
}

// RunBacktest replays source through s once. Per event the runner fills
// pending orders, asks the strategy for a decision, routes it and appends
// the realized equity. Malformed rows are skipped and counted; any other
// data error fails the run.
func RunBacktest(ctx context.Context, s strategy.Strategy, source datasource.DataSource, settings RunSettings, log *logger.Logger) (types.BacktestResult, error) {
	if err := settings.validate(); err != nil {
		return types.BacktestResult{}, err
	}

	if s == nil {
		return types.BacktestResult{}, errors.New(errors.ErrCodeStrategyConfigError, "no strategy")
	}

	if source == nil {
		return types.BacktestResult{}, errors.New(errors.ErrCodeBacktestNoDatasource, "no data source")
	}

	total := 0

	if settings.OnProcessData.IsSome() {
		count, err := source.Count(ctx)
		if err != nil {
			return types.BacktestResult{}, err
		}

		total = count
	}

	anomalies := &types.Anomalies{}
	ledger := NewLedger(settings.StartingEquity, settings.Instrument, settings.Costs, anomalies, log)
	simulator := NewOrderFillSimulator(ledger, settings.Exposure, settings.LimitOrderTTL, anomalies, log)
	router := orderRouter{ledger: ledger, simulator: simulator, anomalies: anomalies, log: log}

	equityCurve := []float64{settings.StartingEquity}
	previous := optional.None[types.MarketEvent]()
	index := 0

	for event, err := range source.Open(ctx) {
		if err != nil {
			if datasource.IsMalformed(err) {
				anomalies.MalformedEvents++

				continue
			}

			return types.BacktestResult{}, err
		}

		simulator.Step(index, event)

		if order := s.Decide(event, previous); order.IsSome() {
			router.route(order.Unwrap(), index, event)
		}

		equity := ledger.Equity()
		if !isFinite(equity) {
			anomalies.NonFiniteEquity++
			equity = equityCurve[len(equityCurve)-1]
		}

		equityCurve = append(equityCurve, equity)
		previous = optional.Some(event)
		index++

		if settings.OnProcessData.IsSome() {
			if err := settings.OnProcessData.Unwrap()(index, total); err != nil {
				return types.BacktestResult{}, errors.Wrap(errors.ErrCodeCallbackFailed, "process data callback failed", err)
			}
		}
	}

	result := CalculateMetrics(settings.StartingEquity, equityCurve, ledger.Trades())
	result.Label = settings.Label
	result.Parameters = settings.Parameters.Map()
	result.EventsProcessed = index
	result.CancelledOrders = simulator.CancelAll()
	result.OpenPosition = ledger.Position()
	result.Anomalies = *anomalies

	log.Debug("Backtest finished",
		zap.String("label", settings.Label),
		zap.Int("events", index),
		zap.Int("trades", result.TotalTrades),
		zap.Float64("total_return_percent", result.TotalReturnPercent),
		zap.Int("anomalies", result.Anomalies.Total()),
	)

	return result, nil
}

// orderRouter applies a strategy decision to the current position state.
type orderRouter struct {
	ledger    *Ledger
	simulator *OrderFillSimulator
	anomalies *types.Anomalies
	log       *logger.Logger
}

func (r orderRouter) route(order types.Order, index int, event types.MarketEvent) {
	if err := order.Validate(); err != nil {
		r.ignore(order, event, "invalid order")

		return
	}

	position := r.ledger.Position()

	switch {
	case position.IsNeutral():
		r.simulator.Submit(order, index, event)
	case position.Side == types.PositionSideLong && order.Kind == types.OrderKindMarketSell,
		position.Side == types.PositionSideShort && order.Kind == types.OrderKindMarketBuy:
		r.ledger.Close(order.Price, event.TradedVolume(), event.Time(), types.ExitReasonStrategy)
	default:
		r.ignore(order, event, "order has no effect on the open position")
	}
}

func (r orderRouter) ignore(order types.Order, event types.MarketEvent, reason string) {
	r.anomalies.IgnoredOrders++
	r.log.Debug("Ignoring order",
		zap.String("kind", string(order.Kind)),
		zap.Float64("price", order.Price),
		zap.String("reason", reason),
		zap.Time("time", event.Time()),
	)
}

type strategyEntry struct {
	name       string
	factory    strategy.Factory
	parameters []types.StrategyParams
}

type BacktestEngineV1 struct {
	config        BacktestEngineV1Config
	costs         transaction_cost.TransactionCosts
	strategies    []strategyEntry
	resultsFolder string
	log           *logger.Logger
	datasource    datasource.DataSource
	registerer    prometheus.Registerer
	metrics       *SweepMetrics
	store         *ResultStore
	reports       []SweepReport
	workers       int
}

// Option customizes a BacktestEngineV1.
type Option func(*BacktestEngineV1)

// WithRegisterer registers the sweep metrics with registerer instead of a
// private registry.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(b *BacktestEngineV1) {
		b.registerer = registerer
	}
}

// WithWorkers overrides the workers setting of the configuration when n is
// positive.
func WithWorkers(n int) Option {
	return func(b *BacktestEngineV1) {
		b.workers = n
	}
}

// WithLogger replaces the production logger created by Initialize.
func WithLogger(log *logger.Logger) Option {
	return func(b *BacktestEngineV1) {
		b.log = log
	}
}

func NewBacktestEngineV1(options ...Option) engine.Engine {
	b := &BacktestEngineV1{
		config:        EmptyConfig(),
		costs:         transaction_cost.ZeroCosts(),
		strategies:    nil,
		resultsFolder: "",
		log:           nil,
		datasource:    nil,
		registerer:    nil,
		metrics:       nil,
		store:         nil,
		reports:       nil,
		workers:       0,
	}

	for _, option := range options {
		option(b)
	}

	return b
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	if err := yaml.Unmarshal([]byte(config), &b.config); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to parse backtest configuration", err)
	}

	if err := b.config.Validate(); err != nil {
		return err
	}

	costs, err := b.config.TransactionCosts.Build()
	if err != nil {
		return err
	}

	b.costs = costs

	if b.workers > 0 {
		b.config.Workers = b.workers
	}

	if b.log == nil {
		b.log, err = logger.NewLogger()
		if err != nil {
			return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create logger", err)
		}
	}

	if b.metrics == nil {
		if b.registerer == nil {
			b.registerer = prometheus.NewRegistry()
		}

		b.metrics = NewSweepMetrics(b.registerer)
	}

	if b.store == nil {
		b.store, err = NewResultStore(b.log)
		if err != nil {
			return err
		}
	}

	b.log.Debug("Backtest engine initialized",
		zap.Float64("initial_capital", b.config.InitialCapital),
		zap.Float64("exposure", b.config.Exposure),
		zap.String("instrument", string(b.config.Instrument.Class)),
		zap.String("cost_preset", string(b.config.TransactionCosts.Preset)),
	)

	return nil
}

// LoadStrategy implements engine.Engine.
func (b *BacktestEngineV1) LoadStrategy(name string, factory strategy.Factory, parameters []types.StrategyParams) error {
	if factory == nil {
		return errors.Newf(errors.ErrCodeUnsupportedStrategy, "no factory for strategy %q", name)
	}

	if len(parameters) == 0 {
		return errors.Newf(errors.ErrCodeBacktestNoParameters, "no parameter sets for strategy %q", name)
	}

	b.strategies = append(b.strategies, strategyEntry{name: name, factory: factory, parameters: parameters})

	if b.log != nil {
		b.log.Debug("Strategy loaded",
			zap.String("strategy", name),
			zap.Int("parameter_sets", len(parameters)),
			zap.Int("total_strategies", len(b.strategies)),
		)
	}

	return nil
}

// SetDataSource implements engine.Engine.
func (b *BacktestEngineV1) SetDataSource(dataSource datasource.DataSource) error {
	b.datasource = dataSource

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder

	return nil
}

// Reports returns the sweep reports of the last Run in strategy order.
func (b *BacktestEngineV1) Reports() []SweepReport {
	return b.reports
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, callbacks engine.LifecycleCallbacks) (err error) {
	if callbacks.OnBacktestEnd != nil {
		defer func() {
			(*callbacks.OnBacktestEnd)(err)
		}()
	}

	if err := b.preRunCheck(); err != nil {
		return err
	}

	// results of a previous run are replaced
	if _, statErr := os.Stat(b.resultsFolder); statErr == nil {
		os.RemoveAll(b.resultsFolder)
	}

	if err := os.MkdirAll(b.resultsFolder, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create results folder", err)
	}

	totalParameterSets := 0
	for _, entry := range b.strategies {
		totalParameterSets += len(entry.parameters)
	}

	if callbacks.OnBacktestStart != nil {
		if err := (*callbacks.OnBacktestStart)(len(b.strategies), totalParameterSets); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "backtest start callback failed", err)
		}
	}

	b.reports = make([]SweepReport, 0, len(b.strategies))

	for i, entry := range b.strategies {
		if callbacks.OnStrategyStart != nil {
			if err := (*callbacks.OnStrategyStart)(i, entry.name, len(b.strategies)); err != nil {
				return errors.Wrap(errors.ErrCodeCallbackFailed, "strategy start callback failed", err)
			}
		}

		report, err := RunSweep(ctx, SweepConfig{
			StrategyName:   entry.name,
			Factory:        entry.factory,
			Parameters:     entry.parameters,
			Source:         b.datasource,
			Costs:          b.costs,
			StartingEquity: b.config.InitialCapital,
			Exposure:       b.config.Exposure,
			Instrument:     b.config.Instrument,
			LimitOrderTTL:  b.config.LimitOrderTTL,
			Workers:        b.config.Workers,
			Callbacks:      callbacks,
		}, b.log, b.metrics)
		if err != nil {
			return err
		}

		if err := b.writeResults(entry.name, report); err != nil {
			return err
		}

		b.reports = append(b.reports, report)

		if callbacks.OnStrategyEnd != nil {
			(*callbacks.OnStrategyEnd)(i, entry.name)
		}
	}

	return nil
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	config := b.config

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", fmt.Errorf("failed to generate schema: %w", err)
	}

	return schema, nil
}

// writeResults stores a strategy's sweep as report.yaml plus Parquet
// exports of its runs, trades and equity curves.
func (b *BacktestEngineV1) writeResults(strategyName string, report SweepReport) error {
	folder := filepath.Join(b.resultsFolder, strategyName)

	if err := os.MkdirAll(folder, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create strategy results folder", err)
	}

	if err := WriteSweepReport(filepath.Join(folder, "report.yaml"), report); err != nil {
		return err
	}

	for i, result := range report.Results {
		if _, err := b.store.Save(result.RunID, strategyName, i, result); err != nil {
			return err
		}
	}

	if err := b.store.Write(folder); err != nil {
		return err
	}

	return b.store.Cleanup()
}

func (b *BacktestEngineV1) preRunCheck() error {
	if b.log == nil || b.store == nil {
		return errors.New(errors.ErrCodeBacktestInitFailed, "engine is not initialized")
	}

	if len(b.strategies) == 0 {
		b.log.Error("No strategies loaded")

		return errors.New(errors.ErrCodeBacktestNoParameters, "no strategies loaded")
	}

	if b.resultsFolder == "" {
		b.log.Error("No results folder set")

		return errors.New(errors.ErrCodeBacktestConfigError, "no results folder set")
	}

	if b.datasource == nil {
		b.log.Error("No datasource set")

		return errors.New(errors.ErrCodeBacktestNoDatasource, "no datasource set")
	}

	return nil
}
