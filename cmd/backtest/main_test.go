package main

import (
	"os"
	"path/filepath"
	"testing"

	engine "github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/inkback/internal/strategy"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type BacktestCommandTestSuite struct {
	suite.Suite
}

func TestBacktestCommandSuite(t *testing.T) {
	suite.Run(t, new(BacktestCommandTestSuite))
}

func (suite *BacktestCommandTestSuite) TestParseSweepFile() {
	data := []byte(`
strategies:
  - name: ma_cross
    parameters:
      short_window: [5, 10]
      long_window: [20, 50, 100]
  - name: footprint_imbalance
    parameters:
      threshold: [0.2]
`)

	file, err := parseSweepFile(data)
	suite.Require().NoError(err)
	suite.Require().Len(file.Strategies, 2)
	suite.Equal("ma_cross", file.Strategies[0].Name)
	suite.Equal([]float64{20, 50, 100}, file.Strategies[0].Parameters["long_window"])

	plans, err := file.resolve(strategy.DefaultRegistry())
	suite.Require().NoError(err)
	suite.Require().Len(plans, 2)
	suite.Len(plans[0].parameters, 6)
	suite.NotNil(plans[0].factory)
	suite.Len(plans[1].parameters, 1)
}

func (suite *BacktestCommandTestSuite) TestParseSweepFileErrors() {
	tests := []struct {
		name       string
		data       string
		expectCode errors.ErrorCode
	}{
		{
			name:       "no strategies",
			data:       "strategies: []\n",
			expectCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name:       "missing name",
			data:       "strategies:\n  - parameters:\n      a: [1]\n",
			expectCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name:       "not yaml",
			data:       "strategies: [",
			expectCode: errors.ErrCodeInvalidConfiguration,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := parseSweepFile([]byte(tc.data))
			suite.Require().Error(err)
			suite.Equal(tc.expectCode, errors.GetCode(err))
		})
	}
}

func (suite *BacktestCommandTestSuite) TestResolveErrors() {
	unknown := SweepFile{Strategies: []StrategyGrid{{Name: "martingale", Parameters: types.ParameterGrid{"a": {1}}}}}
	_, err := unknown.resolve(strategy.DefaultRegistry())
	suite.True(errors.HasCode(err, errors.ErrCodeUnsupportedStrategy))

	empty := SweepFile{Strategies: []StrategyGrid{{Name: strategy.MovingAverageCrossName, Parameters: types.ParameterGrid{"short_window": {}}}}}
	_, err = empty.resolve(strategy.DefaultRegistry())
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameterGrid))
}

func (suite *BacktestCommandTestSuite) TestLoadSweepFile() {
	path := filepath.Join(suite.T().TempDir(), "sweep.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte("strategies:\n  - name: ma_cross\n    parameters:\n      short_window: [5]\n      long_window: [20]\n"), 0644))

	file, err := loadSweepFile(path)
	suite.Require().NoError(err)
	suite.Len(file.Strategies, 1)

	_, err = loadSweepFile(filepath.Join(suite.T().TempDir(), "missing.yaml"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *BacktestCommandTestSuite) TestRenderReport() {
	report := engine.SweepReport{
		Strategy: "ma_cross",
		Results: []types.BacktestResult{
			{Label: "ma_cross_2 (long_window=20, short_window=10)", TotalReturnPercent: 4.25, TotalTrades: 3},
			{Label: "ma_cross_1 (long_window=20, short_window=5)", TotalReturnPercent: -1.5, TotalTrades: 7},
		},
		Failures: []engine.SweepFailure{
			{Label: "ma_cross_3", Code: errors.ErrCodeInvalidWindow, Message: "short_window must be below long_window"},
		},
		Benchmark: &types.BacktestResult{Label: engine.BenchmarkLabel, TotalReturnPercent: 2},
		Summary:   engine.SweepSummary{Runs: 2, Failed: 1, Profitable: 1, BeatBenchmark: 1, AverageReturnPercent: 1.375},
	}

	output := renderReport(report, 1)
	suite.Contains(output, "ma_cross_2")
	suite.NotContains(output, "ma_cross_1 ")
	suite.Contains(output, engine.BenchmarkLabel)
	suite.Contains(output, "4.25")
	suite.Contains(output, "2 runs, 1 failed")

	failures := renderFailures(report)
	suite.Contains(failures, "1 failed runs")
	suite.Contains(failures, "short_window must be below long_window")

	suite.Empty(renderFailures(engine.SweepReport{}))
}
