package engine

import (
	"testing"

	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/mocks"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func tradesWithPnL(pnls ...float64) []types.Trade {
	result := make([]types.Trade, len(pnls))
	for i, pnl := range pnls {
		result[i] = types.Trade{PnL: pnl, Side: types.PositionSideLong, TransactionCosts: 1}
	}

	return result
}

func (suite *MetricsTestSuite) TestCalculateMetrics() {
	tests := []struct {
		name               string
		startingEquity     float64
		curve              []float64
		trades             []types.Trade
		expectReturn       float64
		expectReturnPct    float64
		expectWinRate      float64
		expectProfitFactor float64
		expectAvgWin       float64
		expectAvgLoss      float64
		expectLargestWin   float64
		expectLargestLoss  float64
		expectCosts        float64
	}{
		{
			name:               "no trades",
			startingEquity:     100000,
			curve:              []float64{100000, 100000, 100000},
			trades:             nil,
			expectReturn:       0,
			expectReturnPct:    0,
			expectWinRate:      0,
			expectProfitFactor: 0,
		},
		{
			name:               "only winners are capped",
			startingEquity:     1000,
			curve:              []float64{1000, 1010, 1030},
			trades:             tradesWithPnL(10, 20),
			expectReturn:       30,
			expectReturnPct:    3,
			expectWinRate:      1,
			expectProfitFactor: ProfitFactorCap,
			expectAvgWin:       15,
			expectLargestWin:   20,
			expectCosts:        2,
		},
		{
			name:               "mixed trades",
			startingEquity:     1000,
			curve:              []float64{1000, 1010, 1030, 1020},
			trades:             tradesWithPnL(10, 20, -10),
			expectReturn:       20,
			expectReturnPct:    2,
			expectWinRate:      2.0 / 3.0,
			expectProfitFactor: 3,
			expectAvgWin:       15,
			expectAvgLoss:      10,
			expectLargestWin:   20,
			expectLargestLoss:  -10,
			expectCosts:        3,
		},
		{
			name:               "only losers",
			startingEquity:     1000,
			curve:              []float64{1000, 990, 960},
			trades:             tradesWithPnL(-10, -30),
			expectReturn:       -40,
			expectReturnPct:    -4,
			expectWinRate:      0,
			expectProfitFactor: 0,
			expectAvgLoss:      20,
			expectLargestLoss:  -30,
			expectCosts:        2,
		},
		{
			name:               "break even trades count as neither",
			startingEquity:     1000,
			curve:              []float64{1000, 1000},
			trades:             tradesWithPnL(0),
			expectReturn:       0,
			expectReturnPct:    0,
			expectWinRate:      0,
			expectProfitFactor: 0,
			expectCosts:        1,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			result := CalculateMetrics(tc.startingEquity, tc.curve, tc.trades)

			suite.Equal(tc.startingEquity, result.StartingEquity)
			suite.Equal(tc.curve[len(tc.curve)-1], result.EndingEquity)
			suite.InDelta(tc.expectReturn, result.TotalReturn, 1e-9)
			suite.InDelta(tc.expectReturnPct, result.TotalReturnPercent, 1e-9)
			suite.InDelta(tc.expectWinRate, result.WinRate, 1e-9)
			suite.InDelta(tc.expectProfitFactor, result.ProfitFactor, 1e-9)
			suite.InDelta(tc.expectAvgWin, result.AverageWin, 1e-9)
			suite.InDelta(tc.expectAvgLoss, result.AverageLoss, 1e-9)
			suite.InDelta(tc.expectLargestWin, result.LargestWin, 1e-9)
			suite.InDelta(tc.expectLargestLoss, result.LargestLoss, 1e-9)
			suite.InDelta(tc.expectCosts, result.TotalTransactionCosts, 1e-9)
			suite.Equal(len(tc.trades), result.TotalTrades)
			suite.Equal(result.TotalTrades, result.WinningTrades+result.LosingTrades+countBreakEven(tc.trades))
			suite.GreaterOrEqual(result.LargestWin, 0.0)
			suite.LessOrEqual(result.LargestLoss, 0.0)
			suite.GreaterOrEqual(result.AverageLoss, 0.0)
		})
	}
}

func countBreakEven(trades []types.Trade) int {
	count := 0

	for _, trade := range trades {
		if trade.PnL == 0 {
			count++
		}
	}

	return count
}

func (suite *MetricsTestSuite) TestMaxDrawdown() {
	tests := []struct {
		name           string
		startingEquity float64
		curve          []float64
		expectAbsolute float64
		expectPercent  float64
	}{
		{
			name:           "monotonic rise has no drawdown",
			startingEquity: 100,
			curve:          []float64{100, 110, 120},
		},
		{
			name:           "drawdown measured from the running peak",
			startingEquity: 100,
			curve:          []float64{100, 120, 90, 130, 117},
			expectAbsolute: 30,
			expectPercent:  25,
		},
		{
			name:           "drop below the starting equity",
			startingEquity: 100,
			curve:          []float64{100, 80},
			expectAbsolute: 20,
			expectPercent:  20,
		},
		{
			name:           "non positive peak skips the percentage",
			startingEquity: 0,
			curve:          []float64{0, -5},
			expectAbsolute: 5,
			expectPercent:  0,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			absolute, percent := maxDrawdown(tc.startingEquity, tc.curve)

			suite.InDelta(tc.expectAbsolute, absolute, 1e-9)
			suite.InDelta(tc.expectPercent, percent, 1e-9)
		})
	}
}

func (suite *MetricsTestSuite) TestDrawdownBounds() {
	gen := mocks.NewDataGenerator(11)
	config := mocks.DefaultConfig()
	config.Count = 2000
	config.Volatility = 0.02

	bars := gen.Generate(config)

	curve := make([]float64, 0, len(bars)+1)
	curve = append(curve, config.InitialPrice)

	for _, bar := range bars {
		curve = append(curve, bar.Close)
	}

	result := CalculateMetrics(config.InitialPrice, curve, nil)

	suite.GreaterOrEqual(result.MaxDrawdown, 0.0)
	suite.GreaterOrEqual(result.MaxDrawdownPercent, 0.0)
	suite.LessOrEqual(result.MaxDrawdownPercent, 100.0)
}
