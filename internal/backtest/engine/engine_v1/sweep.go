package engine

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/internal/backtest/engine"
	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/transaction_cost"
	"github.com/rxtech-lab/inkback/internal/logger"
	"github.com/rxtech-lab/inkback/internal/strategy"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// SweepConfig describes one parameter sweep of a strategy.
type SweepConfig struct {
	StrategyName   string
	Factory        strategy.Factory
	Parameters     []types.StrategyParams
	Source         datasource.DataSource
	Costs          transaction_cost.TransactionCosts
	StartingEquity float64
	Exposure       float64
	Instrument     types.Instrument
	LimitOrderTTL  int
	// Workers bounds the concurrent runs. 0 uses every CPU.
	Workers   int
	Callbacks engine.LifecycleCallbacks
}

// SweepFailure records a parameter set whose run did not produce a result.
type SweepFailure struct {
	Label      string             `yaml:"label" json:"label"`
	RunIndex   int                `yaml:"run_index" json:"run_index"`
	Parameters map[string]float64 `yaml:"parameters" json:"parameters"`
	Code       errors.ErrorCode   `yaml:"code" json:"code"`
	Message    string             `yaml:"message" json:"message"`
}

// SweepSummary aggregates the clean runs of a sweep.
type SweepSummary struct {
	Runs                 int     `yaml:"runs" json:"runs"`
	Failed               int     `yaml:"failed" json:"failed"`
	Profitable           int     `yaml:"profitable" json:"profitable"`
	AverageReturnPercent float64 `yaml:"average_return_percent" json:"average_return_percent"`
	BestReturnPercent    float64 `yaml:"best_return_percent" json:"best_return_percent"`
	WorstReturnPercent   float64 `yaml:"worst_return_percent" json:"worst_return_percent"`
	// BeatBenchmark counts runs whose return exceeds the benchmark's. 0 without a benchmark.
	BeatBenchmark int `yaml:"beat_benchmark" json:"beat_benchmark"`
}

// SweepReport is the outcome of a sweep. Results are ranked by total
// return percent, best first; ties keep submission order.
type SweepReport struct {
	Strategy  string                 `yaml:"strategy" json:"strategy"`
	Results   []types.BacktestResult `yaml:"results" json:"results"`
	Failures  []SweepFailure         `yaml:"failures,omitempty" json:"failures,omitempty"`
	Benchmark *types.BacktestResult  `yaml:"benchmark,omitempty" json:"benchmark,omitempty"`
	Summary   SweepSummary           `yaml:"summary" json:"summary"`
}

// runBacktest is the single-run entry point used by sweeps.
var runBacktest = RunBacktest

// RunID derives the id of the run labelled label within a sweep of
// strategyName. Repeating a sweep yields the same ids.
func RunID(strategyName string, label string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strategyName+"\x00"+label)).String()
}

// runOutcome is written by exactly one worker at its submission index.
type runOutcome struct {
	result  optional.Option[types.BacktestResult]
	failure optional.Option[SweepFailure]
}

// RunLabel names the run of parameters at index within a sweep.
func RunLabel(strategyName string, index int, parameters types.StrategyParams) string {
	if parameters.Len() == 0 {
		return fmt.Sprintf("%s_%d", strategyName, index+1)
	}

	return fmt.Sprintf("%s_%d (%s)", strategyName, index+1, parameters.String())
}

// RunSweep runs every parameter set of config concurrently against the
// shared source. A failing run is recorded in the report and never stops
// its siblings. Only a sweep that cannot start at all returns an error.
func RunSweep(ctx context.Context, config SweepConfig, log *logger.Logger, metrics *SweepMetrics) (SweepReport, error) {
	if len(config.Parameters) == 0 {
		return SweepReport{}, errors.Newf(errors.ErrCodeBacktestNoParameters, "no parameter sets for strategy %q", config.StrategyName)
	}

	if config.Source == nil {
		return SweepReport{}, errors.New(errors.ErrCodeBacktestNoDatasource, "no data source")
	}

	if config.Factory == nil {
		return SweepReport{}, errors.Newf(errors.ErrCodeUnsupportedStrategy, "no factory for strategy %q", config.StrategyName)
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	total := 0

	if config.Callbacks.OnRunStart != nil {
		count, err := config.Source.Count(ctx)
		if err != nil {
			log.Warn("Failed to count data points", zap.String("strategy", config.StrategyName), zap.Error(err))
		} else {
			total = count
		}
	}

	log.Info("Starting parameter sweep",
		zap.String("strategy", config.StrategyName),
		zap.Int("parameter_sets", len(config.Parameters)),
		zap.Int("workers", workers),
	)

	outcomes := make([]runOutcome, len(config.Parameters))

	var group errgroup.Group

	group.SetLimit(workers)

	for i, parameters := range config.Parameters {
		group.Go(func() error {
			outcomes[i] = runOne(ctx, config, i, parameters, total, log, metrics)

			return nil
		})
	}

	// workers never return errors, failures live in outcomes
	_ = group.Wait()

	report := SweepReport{
		Strategy: config.StrategyName,
		Results:  make([]types.BacktestResult, 0, len(outcomes)),
	}

	for _, outcome := range outcomes {
		if outcome.result.IsSome() {
			report.Results = append(report.Results, outcome.result.Unwrap())
		}

		if outcome.failure.IsSome() {
			report.Failures = append(report.Failures, outcome.failure.Unwrap())
		}
	}

	RankResults(report.Results)

	benchmark, err := ComputeBenchmark(ctx, config.Source, config.StartingEquity, config.Exposure, config.Instrument)
	if err != nil {
		log.Warn("Failed to compute benchmark", zap.String("strategy", config.StrategyName), zap.Error(err))
	} else {
		report.Benchmark = &benchmark
	}

	report.Summary = Summarize(report.Results, report.Benchmark, len(report.Failures))
	metrics.sweepFinished(config.StrategyName, report.Results, report.Benchmark)

	log.Info("Parameter sweep finished",
		zap.String("strategy", config.StrategyName),
		zap.Int("runs", report.Summary.Runs),
		zap.Int("failed", report.Summary.Failed),
		zap.Float64("best_return_percent", report.Summary.BestReturnPercent),
	)

	return report, nil
}

func runOne(
	ctx context.Context,
	config SweepConfig,
	index int,
	parameters types.StrategyParams,
	total int,
	log *logger.Logger,
	metrics *SweepMetrics,
) runOutcome {
	label := RunLabel(config.StrategyName, index, parameters)
	runID := RunID(config.StrategyName, label)
	started := false

	fail := func(err error) runOutcome {
		metrics.runFailed(config.StrategyName, started, err)

		if config.Callbacks.OnRunEnd != nil {
			(*config.Callbacks.OnRunEnd)(runID, index, label, err)
		}

		log.Error("Run failed",
			zap.String("label", label),
			zap.String("run_id", runID),
			zap.Error(err),
		)

		return runOutcome{
			result: optional.None[types.BacktestResult](),
			failure: optional.Some(SweepFailure{
				Label:      label,
				RunIndex:   index,
				Parameters: parameters.Map(),
				Code:       errors.GetCode(err),
				Message:    err.Error(),
			}),
		}
	}

	s, err := config.Factory(parameters)
	if err != nil {
		return fail(err)
	}

	if config.Callbacks.OnRunStart != nil {
		if err := (*config.Callbacks.OnRunStart)(runID, index, label, total); err != nil {
			return fail(errors.Wrap(errors.ErrCodeCallbackFailed, "run start callback failed", err))
		}
	}

	onProcessData := optional.None[engine.OnProcessDataCallback]()
	if config.Callbacks.OnProcessData != nil {
		onProcessData = optional.Some(*config.Callbacks.OnProcessData)
	}

	metrics.runStarted()

	started = true
	begin := time.Now()

	result, err := runBacktest(ctx, s, config.Source, RunSettings{
		Label:          label,
		Parameters:     parameters,
		StartingEquity: config.StartingEquity,
		Exposure:       config.Exposure,
		Instrument:     config.Instrument,
		Costs:          config.Costs,
		LimitOrderTTL:  config.LimitOrderTTL,
		OnProcessData:  onProcessData,
	}, log)
	if err != nil {
		return fail(err)
	}

	for _, point := range result.EquityCurve {
		if !isFinite(point) {
			log.Warn("Discarding run with non-finite equity curve", zap.String("label", label))

			return fail(errors.Newf(errors.ErrCodeNonFiniteResult, "run %s produced a non-finite equity curve", label))
		}
	}

	result.RunID = runID

	metrics.runSucceeded(config.StrategyName, time.Since(begin), result)

	if config.Callbacks.OnRunEnd != nil {
		(*config.Callbacks.OnRunEnd)(runID, index, label, nil)
	}

	return runOutcome{
		result:  optional.Some(result),
		failure: optional.None[SweepFailure](),
	}
}

// RankResults orders results by total return percent, best first. The sort
// is stable so equal returns keep submission order.
func RankResults(results []types.BacktestResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TotalReturnPercent > results[j].TotalReturnPercent
	})
}

// Summarize aggregates ranked results. benchmark may be nil.
func Summarize(results []types.BacktestResult, benchmark *types.BacktestResult, failed int) SweepSummary {
	summary := SweepSummary{
		Runs:   len(results),
		Failed: failed,
	}

	if len(results) == 0 {
		return summary
	}

	summary.BestReturnPercent = results[0].TotalReturnPercent
	summary.WorstReturnPercent = results[0].TotalReturnPercent

	sum := 0.0

	for _, result := range results {
		sum += result.TotalReturnPercent

		if result.TotalReturn > 0 {
			summary.Profitable++
		}

		if benchmark != nil && result.TotalReturnPercent > benchmark.TotalReturnPercent {
			summary.BeatBenchmark++
		}

		summary.BestReturnPercent = max(summary.BestReturnPercent, result.TotalReturnPercent)
		summary.WorstReturnPercent = min(summary.WorstReturnPercent, result.TotalReturnPercent)
	}

	summary.AverageReturnPercent = sum / float64(len(results))

	return summary
}

// WriteSweepReport writes report as YAML to path.
func WriteSweepReport(path string, report SweepReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to marshal sweep report", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write sweep report", err)
	}

	return nil
}

// ReadSweepReport loads a report written by WriteSweepReport. Equity curves
// and trade lists are not part of the file.
func ReadSweepReport(path string) (SweepReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to read sweep report: %w", err)
	}

	var report SweepReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return SweepReport{}, fmt.Errorf("failed to parse sweep report: %w", err)
	}

	return report, nil
}
