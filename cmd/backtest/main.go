package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/inkback/internal/backtest/engine"
	engine_v1 "github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/inkback/internal/logger"
	"github.com/rxtech-lab/inkback/internal/strategy"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/internal/version"
	"github.com/rxtech-lab/inkback/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// openSource opens the configured SQL source and loads it into memory so
// concurrent runs share one decoded series.
func openSource(ctx context.Context, cmd *cli.Command, config engine_v1.BacktestEngineV1Config, log *logger.Logger) (*datasource.InMemoryDataSource, error) {
	options := datasource.DefaultOptions()
	options.Schema = types.Schema(cmd.String("schema"))
	options.Symbol = cmd.String("symbol")
	options.Start = config.StartTime
	options.End = config.EndTime

	if table := cmd.String("table"); table != "" {
		options.Table = table
	}

	var (
		source datasource.DataSource
		err    error
	)

	switch {
	case cmd.String("postgres") != "":
		source, err = datasource.NewPostgresDataSource(ctx, cmd.String("postgres"), options, log)
	case cmd.String("data") != "":
		source, err = datasource.NewDuckDBDataSource(cmd.String("data"), options, log)
	default:
		return nil, errors.New(errors.ErrCodeBacktestNoDatasource, "either --data or --postgres is required")
	}

	if err != nil {
		return nil, err
	}
	defer source.Close()

	memory, err := datasource.Preload(ctx, source)
	if err != nil {
		return nil, err
	}

	log.Info("Market data loaded",
		zap.Int("events", len(memory.Events())),
		zap.Int("malformed", memory.Malformed()),
		zap.String("schema", string(options.Schema)),
	)

	return memory, nil
}

func progressCallbacks() engine.LifecycleCallbacks {
	var bar *progressbar.ProgressBar

	onBacktestStart := engine.OnBacktestStartCallback(func(totalStrategies int, totalParameterSets int) error {
		bar = progressbar.NewOptions(totalParameterSets,
			progressbar.OptionSetDescription(fmt.Sprintf("Sweeping %d strategies", totalStrategies)),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)

		return nil
	})

	onRunEnd := engine.OnRunEndCallback(func(runID string, runIndex int, label string, err error) {
		if bar != nil {
			_ = bar.Add(1)
		}
	})

	onBacktestEnd := engine.OnBacktestEndCallback(func(err error) {
		if bar != nil {
			_ = bar.Finish()
		}
	})

	return engine.LifecycleCallbacks{
		OnBacktestStart: &onBacktestStart,
		OnBacktestEnd:   &onBacktestEnd,
		OnStrategyStart: nil,
		OnStrategyEnd:   nil,
		OnRunStart:      nil,
		OnRunEnd:        &onRunEnd,
		OnProcessData:   nil,
	}
}

// backtestAction runs every strategy of the sweep file against one series
// and prints the ranked results.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	level := zapcore.InfoLevel
	if cmd.Bool("verbose") {
		level = zapcore.DebugLevel
	}

	log, err := logger.NewLoggerWithLevel(level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	if cmd.String("config") == "" || cmd.String("sweep") == "" {
		return errors.New(errors.ErrCodeMissingParameter, "--config and --sweep are required")
	}

	rawConfig, err := os.ReadFile(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	config := engine_v1.EmptyConfig()
	if err := yaml.Unmarshal(rawConfig, &config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	sweepFile, err := loadSweepFile(cmd.String("sweep"))
	if err != nil {
		return err
	}

	plans, err := sweepFile.resolve(strategy.DefaultRegistry())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	backtester := engine_v1.NewBacktestEngineV1(
		engine_v1.WithRegisterer(registry),
		engine_v1.WithLogger(log),
		engine_v1.WithWorkers(int(cmd.Int("workers"))),
	)

	if err := backtester.Initialize(string(rawConfig)); err != nil {
		return fmt.Errorf("failed to initialize backtest engine: %w", err)
	}

	for _, plan := range plans {
		if err := backtester.LoadStrategy(plan.name, plan.factory, plan.parameters); err != nil {
			return fmt.Errorf("failed to load strategy %s: %w", plan.name, err)
		}
	}

	source, err := openSource(ctx, cmd, config, log)
	if err != nil {
		return fmt.Errorf("failed to open market data: %w", err)
	}

	if err := backtester.SetDataSource(source); err != nil {
		return err
	}

	if err := backtester.SetResultsFolder(cmd.String("results")); err != nil {
		return err
	}

	if err := backtester.Run(ctx, progressCallbacks()); err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	if v1, ok := backtester.(*engine_v1.BacktestEngineV1); ok {
		var ranked []types.BacktestResult

		for _, report := range v1.Reports() {
			fmt.Println(renderReport(report, int(cmd.Int("top"))))

			if failures := renderFailures(report); failures != "" {
				fmt.Println(failures)
			}

			ranked = append(ranked, report.Results...)
		}

		if path := cmd.String("export"); path != "" {
			engine_v1.RankResults(ranked)

			if err := types.WriteBacktestResults(path, ranked); err != nil {
				return fmt.Errorf("failed to export results: %w", err)
			}
		}
	}

	if path := cmd.String("metrics"); path != "" {
		if err := prometheus.WriteToTextfile(path, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	return nil
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	schema, err := engine_v1.NewBacktestEngineV1().GetConfigSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "backtest",
		Usage:   "Sweep strategy parameters over historical market data",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the engine configuration YAML",
			},
			&cli.StringFlag{
				Name:    "sweep",
				Aliases: []string{"s"},
				Usage:   "Path to the sweep file listing strategies and parameter grids",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Parquet or CSV file holding the market data",
			},
			&cli.StringFlag{
				Name:  "postgres",
				Usage: "Postgres connection string to read market data from instead of --data",
			},
			&cli.StringFlag{
				Name:  "table",
				Usage: "Table holding the market data when reading from Postgres",
			},
			&cli.StringFlag{
				Name:  "schema",
				Usage: fmt.Sprintf("Record layout of the market data (%v)", types.AllSchemas),
				Value: string(types.SchemaOHLCV),
			},
			&cli.StringFlag{
				Name:  "symbol",
				Usage: "Only replay rows of this symbol",
			},
			&cli.StringFlag{
				Name:    "results",
				Aliases: []string{"r"},
				Usage:   "Directory receiving report.yaml and Parquet exports per strategy",
				Value:   "results",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent runs; overrides the config when positive",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of ranked runs to print per strategy; 0 prints all",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Write the ranked runs of every strategy to one YAML file",
			},
			&cli.StringFlag{
				Name:  "metrics",
				Usage: "Write sweep metrics in the Prometheus text format to this file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at debug level",
			},
		},
		Action: backtestAction,
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the engine configuration",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
