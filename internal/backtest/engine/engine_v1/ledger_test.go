package engine

import (
	"math"
	"testing"
	"time"

	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/transaction_cost"
	"github.com/rxtech-lab/inkback/internal/logger"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/stretchr/testify/suite"
)

// nanAfterCommission charges nothing for the first `after` fills and NaN afterwards.
type nanAfterCommission struct {
	after int
	calls int
}

func (c *nanAfterCommission) Calculate(price float64, size float64) float64 {
	c.calls++
	if c.calls > c.after {
		return math.NaN()
	}

	return 0
}

type LedgerTestSuite struct {
	suite.Suite
	log *logger.Logger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (suite *LedgerTestSuite) SetupTest() {
	suite.log = logger.NewNopLogger()
}

func (suite *LedgerTestSuite) newLedger(equity float64, instrument types.Instrument, costs transaction_cost.TransactionCosts) (*Ledger, *types.Anomalies) {
	anomalies := &types.Anomalies{}

	return NewLedger(equity, instrument, costs, anomalies, suite.log), anomalies
}

func (suite *LedgerTestSuite) TestNewLedgerIsNeutral() {
	ledger, _ := suite.newLedger(100000, types.EquityInstrument("SPY"), transaction_cost.ZeroCosts())

	suite.True(ledger.Position().IsNeutral())
	suite.Equal(100000.0, ledger.Equity())
	suite.Empty(ledger.Trades())
}

func (suite *LedgerTestSuite) TestRoundTrips() {
	tests := []struct {
		name            string
		side            types.PositionSide
		entry           float64
		exit            float64
		size            float64
		instrument      types.Instrument
		costs           transaction_cost.TransactionCosts
		expectPnL       float64
		expectPnLPct    float64
		expectCosts     float64
		expectEquity    float64
		expectEntryFill float64
		expectExitFill  float64
	}{
		{
			name:            "long win without costs",
			side:            types.PositionSideLong,
			entry:           100,
			exit:            110,
			size:            500,
			instrument:      types.EquityInstrument("SPY"),
			costs:           transaction_cost.ZeroCosts(),
			expectPnL:       5000,
			expectPnLPct:    10,
			expectCosts:     0,
			expectEquity:    105000,
			expectEntryFill: 100,
			expectExitFill:  110,
		},
		{
			name:            "short win without costs",
			side:            types.PositionSideShort,
			entry:           100,
			exit:            90,
			size:            500,
			instrument:      types.EquityInstrument("SPY"),
			costs:           transaction_cost.ZeroCosts(),
			expectPnL:       5000,
			expectPnLPct:    (100.0/90.0 - 1) * 100,
			expectCosts:     0,
			expectEquity:    105000,
			expectEntryFill: 100,
			expectExitFill:  90,
		},
		{
			name:       "long loss with fixed commission",
			side:       types.PositionSideLong,
			entry:      100,
			exit:       95,
			size:       100,
			instrument: types.EquityInstrument("SPY"),
			costs: transaction_cost.NewTransactionCosts(
				transaction_cost.NewFixedCommission(1),
				transaction_cost.NewFixedSlippage(0),
				transaction_cost.NewFixedSpread(0),
			),
			expectPnL:       -502,
			expectPnLPct:    -5,
			expectCosts:     2,
			expectEquity:    99498,
			expectEntryFill: 100,
			expectExitFill:  95,
		},
		{
			name:       "spread moves both fills against the trader",
			side:       types.PositionSideLong,
			entry:      100,
			exit:       110,
			size:       500,
			instrument: types.EquityInstrument("SPY"),
			costs: transaction_cost.NewTransactionCosts(
				transaction_cost.NewFixedCommission(0),
				transaction_cost.NewFixedSlippage(0),
				transaction_cost.NewFixedSpread(0.2),
			),
			expectPnL:       (109.9-100.1)*500 - 0.2,
			expectPnLPct:    (109.9/100.1 - 1) * 100,
			expectCosts:     0.2,
			expectEquity:    100000 + (109.9-100.1)*500 - 0.2,
			expectEntryFill: 100.1,
			expectExitFill:  109.9,
		},
		{
			name:            "futures point value scales pnl",
			side:            types.PositionSideLong,
			entry:           5000,
			exit:            5010,
			size:            2,
			instrument:      types.Instrument{Symbol: "ES", Class: types.InstrumentClassFutures, PointValue: 12.5},
			costs:           transaction_cost.ZeroCosts(),
			expectPnL:       250,
			expectPnLPct:    (5010.0/5000.0 - 1) * 100,
			expectCosts:     0,
			expectEquity:    100250,
			expectEntryFill: 5000,
			expectExitFill:  5010,
		},
		{
			name:            "options contract multiplier",
			side:            types.PositionSideLong,
			entry:           2.5,
			exit:            3,
			size:            10,
			instrument:      types.OptionsInstrument("SPY"),
			costs:           transaction_cost.ZeroCosts(),
			expectPnL:       500,
			expectPnLPct:    20,
			expectCosts:     0,
			expectEquity:    100500,
			expectEntryFill: 2.5,
			expectExitFill:  3,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			ledger, anomalies := suite.newLedger(100000, tc.instrument, tc.costs)

			suite.True(ledger.Open(tc.side, tc.entry, tc.size, 1000, testStart))
			suite.Equal(tc.side, ledger.Position().Side)
			suite.InDelta(tc.expectEntryFill, ledger.Position().EntryPrice, 1e-9)

			// realized equity only
			suite.Equal(100000.0, ledger.Equity())

			suite.True(ledger.Close(tc.exit, 1000, testStart.Add(30*time.Minute), types.ExitReasonStrategy))
			suite.True(ledger.Position().IsNeutral())

			suite.Require().Len(ledger.Trades(), 1)
			trade := ledger.Trades()[0]
			suite.Equal(tc.side, trade.Side)
			suite.InDelta(tc.expectPnL, trade.PnL, 1e-6)
			suite.InDelta(tc.expectPnLPct, trade.PnLPercent, 1e-9)
			suite.InDelta(tc.expectCosts, trade.TransactionCosts, 1e-9)
			suite.InDelta(tc.expectExitFill, trade.ExitPrice, 1e-9)
			suite.Equal(tc.size, trade.Size)
			suite.Equal(testStart, trade.EntryTime)
			suite.Equal(types.ExitReasonStrategy, trade.ExitReason)
			suite.InDelta(tc.expectEquity, ledger.Equity(), 1e-6)
			suite.Zero(anomalies.Total())
		})
	}
}

func (suite *LedgerTestSuite) TestCloseWhileNeutral() {
	ledger, _ := suite.newLedger(100000, types.EquityInstrument("SPY"), transaction_cost.ZeroCosts())

	suite.False(ledger.Close(100, 1000, testStart, types.ExitReasonStrategy))
	suite.Empty(ledger.Trades())
	suite.Equal(100000.0, ledger.Equity())
}

func (suite *LedgerTestSuite) TestNonFiniteEntryCostRejectsFill() {
	costs := transaction_cost.NewTransactionCosts(
		&nanAfterCommission{after: 0},
		transaction_cost.NewFixedSlippage(0),
		transaction_cost.NewFixedSpread(0),
	)
	ledger, anomalies := suite.newLedger(100000, types.EquityInstrument("SPY"), costs)

	suite.False(ledger.Open(types.PositionSideLong, 100, 10, 1000, testStart))
	suite.True(ledger.Position().IsNeutral())
	suite.Equal(1, anomalies.NonFiniteCosts)
}

func (suite *LedgerTestSuite) TestNonFinitePnLKeepsPositionOpen() {
	costs := transaction_cost.NewTransactionCosts(
		&nanAfterCommission{after: 1},
		transaction_cost.NewFixedSlippage(0),
		transaction_cost.NewFixedSpread(0),
	)
	ledger, anomalies := suite.newLedger(100000, types.EquityInstrument("SPY"), costs)

	suite.Require().True(ledger.Open(types.PositionSideLong, 100, 10, 1000, testStart))
	suite.False(ledger.Close(110, 1000, testStart.Add(30*time.Minute), types.ExitReasonStrategy))

	suite.Equal(types.PositionSideLong, ledger.Position().Side)
	suite.Empty(ledger.Trades())
	suite.Equal(100000.0, ledger.Equity())
	suite.Equal(1, anomalies.NonFinitePnL)
}

func (suite *LedgerTestSuite) TestNonPositiveExitPriceKeepsPositionOpen() {
	// half of a 30 wide spread exceeds the 10 exit price of a long
	costs := transaction_cost.NewTransactionCosts(
		transaction_cost.NewFixedCommission(0),
		transaction_cost.NewFixedSlippage(0),
		transaction_cost.NewFixedSpread(30),
	)
	ledger, anomalies := suite.newLedger(100000, types.EquityInstrument("SPY"), costs)

	suite.Require().True(ledger.Open(types.PositionSideLong, 100, 10, 1000, testStart))
	suite.False(ledger.Close(10, 1000, testStart.Add(time.Minute), types.ExitReasonStrategy))

	suite.Equal(types.PositionSideLong, ledger.Position().Side)
	suite.Empty(ledger.Trades())
	suite.Equal(100000.0, ledger.Equity())
	suite.Equal(1, anomalies.NonFiniteCosts)
	suite.Equal(0, anomalies.NonFinitePnL)
}

func (suite *LedgerTestSuite) TestNonPositiveEntryPriceRejectsFill() {
	costs := transaction_cost.NewTransactionCosts(
		transaction_cost.NewFixedCommission(0),
		transaction_cost.NewFixedSlippage(0),
		transaction_cost.NewFixedSpread(30),
	)
	ledger, anomalies := suite.newLedger(100000, types.EquityInstrument("SPY"), costs)

	suite.False(ledger.Open(types.PositionSideShort, 10, 10, 1000, testStart))
	suite.True(ledger.Position().IsNeutral())
	suite.Equal(1, anomalies.NonFiniteCosts)
}
