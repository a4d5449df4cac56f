package engine

import (
	"context"

	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/inkback/internal/strategy"
	"github.com/rxtech-lab/inkback/internal/types"
)

// Lifecycle callback types for backtest phases
// All callbacks with error return can abort execution if they return an error

// OnBacktestStartCallback is called when the entire backtest begins.
type OnBacktestStartCallback func(totalStrategies int, totalParameterSets int) error

// OnBacktestEndCallback is called when the entire backtest completes (always called via defer).
type OnBacktestEndCallback func(err error)

// OnStrategyStartCallback is called when the sweep of one strategy begins.
type OnStrategyStartCallback func(strategyIndex int, strategyName string, totalStrategies int) error

// OnStrategyEndCallback is called when the sweep of one strategy ends.
type OnStrategyEndCallback func(strategyIndex int, strategyName string)

// OnRunStartCallback is called before a parameter set is simulated. runID is
// generated before processing starts. Returning an error fails that run only.
// Runs of a sweep execute concurrently, so the callback must be safe for concurrent use.
type OnRunStartCallback func(runID string, runIndex int, label string, totalDataPoints int) error

// OnRunEndCallback is called when a run ends, with its error if it failed.
// It may be called concurrently.
type OnRunEndCallback func(runID string, runIndex int, label string, err error)

// OnProcessDataCallback is called for each event processed by a run.
// It may be called concurrently.
type OnProcessDataCallback func(current int, total int) error

// LifecycleCallbacks holds all lifecycle callback functions for the backtest engine.
// All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnBacktestStart *OnBacktestStartCallback
	OnBacktestEnd   *OnBacktestEndCallback
	OnStrategyStart *OnStrategyStartCallback
	OnStrategyEnd   *OnStrategyEndCallback
	OnRunStart      *OnRunStartCallback
	OnRunEnd        *OnRunEndCallback
	OnProcessData   *OnProcessDataCallback
}

type Engine interface {
	// Initialize the engine with the given YAML configuration.
	Initialize(config string) error
	// LoadStrategy adds a strategy to sweep over the given parameter sets.
	// Could be called multiple times to sweep multiple strategies.
	LoadStrategy(name string, factory strategy.Factory, parameters []types.StrategyParams) error
	// SetDataSource sets the event source shared by every run.
	SetDataSource(dataSource datasource.DataSource) error
	// SetResultsFolder sets the output directory. Each strategy writes
	// <folder>/<strategy>/report.yaml and Parquet exports of its runs.
	SetResultsFolder(folder string) error
	// Run sweeps every loaded strategy. The context is passed to the data source.
	// Use LifecycleCallbacks to receive notifications at different phases of the backtest.
	Run(ctx context.Context, callbacks LifecycleCallbacks) error
	// GetConfigSchema returns the schema of the engine configuration
	GetConfigSchema() (string, error)
}
