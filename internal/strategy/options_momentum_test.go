package strategy

import (
	"testing"
	"time"

	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type OptionsMomentumTestSuite struct {
	suite.Suite
}

func TestOptionsMomentumSuite(t *testing.T) {
	suite.Run(t, new(OptionsMomentumTestSuite))
}

func underlyingQuote(index int, mid float64) types.QuoteTick {
	return types.QuoteTick{
		Symbol:     "SPY",
		Timestamp:  testStart.Add(time.Duration(index) * time.Minute),
		TradePrice: mid,
		Size:       100,
		Book:       types.Quote{BidPrice: mid - 0.01, AskPrice: mid + 0.01, BidSize: 10, AskSize: 10},
	}
}

func optionTrade(index int, id uint32, right types.OptionRight, price float64, underlying float64) types.OptionTrade {
	timestamp := testStart.Add(time.Duration(index) * time.Minute)

	return types.OptionTrade{
		Symbol:       "SPY 240201C00105000",
		InstrumentID: id,
		Timestamp:    timestamp,
		TradePrice:   price,
		Size:         1,
		Strike:       105,
		Expiration:   testStart.AddDate(0, 0, 30),
		Right:        right,
		Underlying:   types.Quote{BidPrice: underlying - 0.01, AskPrice: underlying + 0.01, BidSize: 5, AskSize: 5},
	}
}

func (suite *OptionsMomentumTestSuite) newStrategy() Strategy {
	s, err := NewOptionsMomentum(types.NewStrategyParams(map[string]float64{
		"lookback_periods":   2,
		"momentum_threshold": 1,
		"profit_target":      50,
		"stop_loss":          50,
		"min_days_to_expiry": 5,
	}))
	suite.Require().NoError(err)

	return s
}

func (suite *OptionsMomentumTestSuite) TestInvalidParameters() {
	_, err := NewOptionsMomentum(types.NewStrategyParams(map[string]float64{
		"lookback_periods":   2,
		"momentum_threshold": 0,
		"profit_target":      50,
		"stop_loss":          50,
	}))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidThreshold))

	_, err = NewOptionsMomentum(types.NewStrategyParams(map[string]float64{"lookback_periods": 2}))
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (suite *OptionsMomentumTestSuite) TestBuysCallOnUpwardMomentumAndTakesProfit() {
	s := suite.newStrategy()

	decisions := replay(s, []types.MarketEvent{
		underlyingQuote(0, 100),
		underlyingQuote(1, 101),
		optionTrade(2, 7, types.OptionRightCall, 2.0, 103),
		optionTrade(3, 8, types.OptionRightCall, 4.0, 104),
		optionTrade(4, 7, types.OptionRightCall, 2.5, 104),
		optionTrade(5, 7, types.OptionRightCall, 3.1, 105),
	})

	suite.True(decisions[0].IsNone())
	suite.True(decisions[1].IsNone())
	suite.Require().True(decisions[2].IsSome())
	suite.Equal(types.MarketBuy(2.0), decisions[2].Unwrap())

	// another contract while holding
	suite.True(decisions[3].IsNone())
	// held contract below target
	suite.True(decisions[4].IsNone())

	suite.Require().True(decisions[5].IsSome())
	suite.Equal(types.MarketSell(3.1), decisions[5].Unwrap())
}

func (suite *OptionsMomentumTestSuite) TestBuysPutOnDownwardMomentum() {
	s := suite.newStrategy()

	decisions := replay(s, []types.MarketEvent{
		underlyingQuote(0, 100),
		underlyingQuote(1, 99),
		optionTrade(2, 9, types.OptionRightCall, 1.0, 97),
		optionTrade(3, 10, types.OptionRightPut, 1.5, 97),
	})

	suite.True(decisions[2].IsNone())
	suite.Require().True(decisions[3].IsSome())
	suite.Equal(types.MarketBuy(1.5), decisions[3].Unwrap())
}

func (suite *OptionsMomentumTestSuite) TestExitsNearExpiry() {
	s := suite.newStrategy()

	entry := optionTrade(2, 7, types.OptionRightCall, 2.0, 103)
	late := optionTrade(3, 7, types.OptionRightCall, 2.1, 103)
	late.Timestamp = entry.Expiration.AddDate(0, 0, -3)

	decisions := replay(s, []types.MarketEvent{
		underlyingQuote(0, 100),
		underlyingQuote(1, 101),
		entry,
		late,
	})

	suite.Require().True(decisions[2].IsSome())
	suite.Require().True(decisions[3].IsSome())
	suite.Equal(types.MarketSell(2.1), decisions[3].Unwrap())
}

func (suite *OptionsMomentumTestSuite) TestRejectsUnreasonableStrike() {
	s := suite.newStrategy()

	trade := optionTrade(2, 7, types.OptionRightCall, 2.0, 103)
	trade.Strike = 1000

	decisions := replay(s, []types.MarketEvent{
		underlyingQuote(0, 100),
		underlyingQuote(1, 101),
		trade,
	})

	suite.True(decisions[2].IsNone())
}

func (suite *OptionsMomentumTestSuite) TestNeedsHistory() {
	s := suite.newStrategy()

	decisions := replay(s, []types.MarketEvent{
		optionTrade(0, 7, types.OptionRightCall, 2.0, 110),
	})

	suite.True(decisions[0].IsNone())
}

func (suite *OptionsMomentumTestSuite) TestReset() {
	s := suite.newStrategy()
	events := []types.MarketEvent{
		underlyingQuote(0, 100),
		underlyingQuote(1, 101),
		optionTrade(2, 7, types.OptionRightCall, 2.0, 103),
	}

	replay(s, events)
	s.Reset()

	decisions := replay(s, events)
	suite.True(decisions[2].IsSome())
}
