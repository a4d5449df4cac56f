package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/internal/logger"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type DuckDBDataSourceTestSuite struct {
	suite.Suite
	logger  *logger.Logger
	tempDir string
}

func TestDuckDBDataSourceSuite(t *testing.T) {
	suite.Run(t, new(DuckDBDataSourceTestSuite))
}

func (suite *DuckDBDataSourceTestSuite) SetupSuite() {
	suite.logger = logger.NewNopLogger()
}

func (suite *DuckDBDataSourceTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *DuckDBDataSourceTestSuite) writeFile(name string, content string) string {
	path := filepath.Join(suite.tempDir, name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0644))

	return path
}

// writeParquet materializes a query to a parquet file using a scratch DuckDB.
func (suite *DuckDBDataSourceTestSuite) writeParquet(name string, query string) string {
	path := filepath.Join(suite.tempDir, name)

	db, err := sql.Open("duckdb", "")
	suite.Require().NoError(err)
	defer db.Close()

	_, err = db.Exec(fmt.Sprintf(`COPY (%s) TO '%s' (FORMAT PARQUET)`, query, path))
	suite.Require().NoError(err)

	return path
}

func (suite *DuckDBDataSourceTestSuite) collect(source DataSource) ([]types.MarketEvent, []error) {
	var (
		events []types.MarketEvent
		errs   []error
	)

	for event, err := range source.Open(context.Background()) {
		if err != nil {
			errs = append(errs, err)

			continue
		}

		events = append(events, event)
	}

	return events, errs
}

func (suite *DuckDBDataSourceTestSuite) TestOHLCVFromParquet() {
	path := suite.writeParquet("bars.parquet", `
		SELECT time, symbol, open::DOUBLE AS open, high::DOUBLE AS high, low::DOUBLE AS low,
			close::DOUBLE AS close, volume::DOUBLE AS volume
		FROM (VALUES
			(TIMESTAMP '2024-01-01 09:32:00', 'AAPL', 101, 103, 100, 102, 1200),
			(TIMESTAMP '2024-01-01 09:30:00', 'AAPL', 99, 101, 98, 100, 1000),
			(TIMESTAMP '2024-01-01 09:31:00', 'AAPL', 100, 102, 99, 101, 1100)
		) AS t(time, symbol, open, high, low, close, volume)`)

	source, err := NewDuckDBDataSource(path, DefaultOptions(), suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	count, err := source.Count(context.Background())
	suite.Require().NoError(err)
	suite.Equal(3, count)

	events, errs := suite.collect(source)
	suite.Empty(errs)
	suite.Require().Len(events, 3)

	// ordered by time
	suite.Equal(100.0, events[0].Price())
	suite.Equal(101.0, events[1].Price())
	suite.Equal(102.0, events[2].Price())

	bar, ok := events[0].(types.Bar)
	suite.Require().True(ok)
	suite.Equal("AAPL", bar.Symbol)
	suite.Equal(98.0, bar.Low)
	suite.Equal(1000.0, bar.Volume)
}

func (suite *DuckDBDataSourceTestSuite) TestMissingHighLowDefaultToClose() {
	path := suite.writeParquet("gaps.parquet", `
		SELECT time, symbol, open::DOUBLE AS open, high::DOUBLE AS high, low::DOUBLE AS low,
			close::DOUBLE AS close, volume::DOUBLE AS volume
		FROM (VALUES
			(TIMESTAMP '2024-01-01 09:30:00', 'AAPL', 100, NULL, NULL, 100, 1000),
			(TIMESTAMP '2024-01-01 09:31:00', 'AAPL', 100, 102, NULL, 101, 1000),
			(TIMESTAMP '2024-01-01 09:32:00', 'AAPL', 100, 102, 101, 105, 1000)
		) AS t(time, symbol, open, high, low, close, volume)`)

	source, err := NewDuckDBDataSource(path, DefaultOptions(), suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	events, errs := suite.collect(source)
	suite.Require().Len(events, 2)

	suite.Equal(100.0, events[0].HighPrice())
	suite.Equal(100.0, events[0].LowPrice())
	suite.Equal(102.0, events[1].HighPrice())
	suite.Equal(101.0, events[1].LowPrice())

	// a close above the high is not a bar
	suite.Require().Len(errs, 1)
	suite.True(IsMalformed(errs[0]))
}

func (suite *DuckDBDataSourceTestSuite) TestReopenIsIndependent() {
	path := suite.writeFile("bars.csv", `time,symbol,open,high,low,close,volume
2024-01-01 09:30:00,SPY,1,2,1,2,10
2024-01-01 09:31:00,SPY,2,3,2,3,10
`)

	source, err := NewDuckDBDataSource(path, DefaultOptions(), suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	// stop the first pass early, the second pass starts from the beginning
	for event, err := range source.Open(context.Background()) {
		suite.Require().NoError(err)
		suite.Equal(2.0, event.Price())

		break
	}

	events, errs := suite.collect(source)
	suite.Empty(errs)
	suite.Len(events, 2)
}

func (suite *DuckDBDataSourceTestSuite) TestMalformedRowsAreYieldedAndSkipped() {
	path := suite.writeFile("bars.csv", `time,symbol,open,high,low,close,volume
2024-01-01 09:30:00,SPY,1,2,1,2,10
2024-01-01 09:31:00,SPY,2,3,2,0,10
2024-01-01 09:32:00,SPY,2,3,4,3,10
2024-01-01 09:33:00,SPY,3,4,3,4,10
`)

	source, err := NewDuckDBDataSource(path, DefaultOptions(), suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	events, errs := suite.collect(source)
	suite.Len(events, 2)
	suite.Require().Len(errs, 2)

	for _, err := range errs {
		suite.True(IsMalformed(err))
		suite.True(errors.IsDataError(err))
	}
}

func (suite *DuckDBDataSourceTestSuite) TestTimeWindowAndSymbolFilter() {
	path := suite.writeFile("bars.csv", `time,symbol,open,high,low,close,volume
2024-01-01 09:30:00,SPY,1,2,1,2,10
2024-01-01 09:31:00,QQQ,2,3,2,3,10
2024-01-01 09:32:00,SPY,2,3,2,3,10
2024-01-01 09:33:00,SPY,3,4,3,4,10
`)

	options := DefaultOptions()
	options.Symbol = "SPY"
	options.Start = optional.Some(time.Date(2024, 1, 1, 9, 31, 0, 0, time.UTC))
	options.End = optional.Some(time.Date(2024, 1, 1, 9, 32, 0, 0, time.UTC))

	source, err := NewDuckDBDataSource(path, options, suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	count, err := source.Count(context.Background())
	suite.Require().NoError(err)
	suite.Equal(1, count)

	events, errs := suite.collect(source)
	suite.Empty(errs)
	suite.Require().Len(events, 1)
	suite.Equal(3.0, events[0].Price())
}

func (suite *DuckDBDataSourceTestSuite) TestQuoteSchema() {
	path := suite.writeFile("mbp.csv", `time,symbol,price,size,bid_price,ask_price,bid_size,ask_size
2024-01-01 09:30:00,ES,5000.25,3,5000.00,5000.50,10,12
`)

	options := DefaultOptions()
	options.Schema = types.SchemaMBP1

	source, err := NewDuckDBDataSource(path, options, suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	events, errs := suite.collect(source)
	suite.Empty(errs)
	suite.Require().Len(events, 1)
	suite.Equal(types.SchemaMBP1, events[0].Schema())
	suite.Equal(5000.25, types.RepresentativePrice(events[0]))
}

func (suite *DuckDBDataSourceTestSuite) TestOptionTradeSchema() {
	path := suite.writeParquet("options.parquet", `
		SELECT
			TIMESTAMP '2024-01-02 15:00:00' AS time,
			'SPY   240119C00470000' AS symbol,
			42::BIGINT AS instrument_id,
			2.15::DOUBLE AS price,
			5::DOUBLE AS size,
			470::DOUBLE AS strike_price,
			TIMESTAMP '2024-01-19 21:00:00' AS expiration,
			'C' AS option_type,
			471.9::DOUBLE AS underlying_bid,
			472.1::DOUBLE AS underlying_ask,
			472::DOUBLE AS underlying_price`)

	options := DefaultOptions()
	options.Schema = types.SchemaOptionTrade

	source, err := NewDuckDBDataSource(path, options, suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	events, errs := suite.collect(source)
	suite.Empty(errs)
	suite.Require().Len(events, 1)

	option, ok := events[0].(types.OptionTrade)
	suite.Require().True(ok)
	suite.Equal(uint32(42), option.InstrumentID)
	suite.Equal(types.OptionRightCall, option.Right)
	suite.Equal(470.0, option.Strike)
	suite.InDelta(472.0, option.UnderlyingMid(), 1e-9)
	suite.Equal(17, option.DaysToExpiry())
}

func (suite *DuckDBDataSourceTestSuite) TestFootprintSchema() {
	path := suite.writeParquet("footprint.parquet", `
		SELECT
			TIMESTAMP '2024-01-02 15:00:00' AS time,
			'ES' AS symbol,
			5000::DOUBLE AS open, 5001::DOUBLE AS high, 4999::DOUBLE AS low,
			5000.5::DOUBLE AS close, 100::DOUBLE AS volume,
			'{"5000.5": [40, 10], "5000.25": [20, 30]}' AS levels`)

	options := DefaultOptions()
	options.Schema = types.SchemaFootprint

	source, err := NewDuckDBDataSource(path, options, suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	events, errs := suite.collect(source)
	suite.Empty(errs)
	suite.Require().Len(events, 1)

	footprint, ok := events[0].(types.Footprint)
	suite.Require().True(ok)
	suite.Equal(60.0, footprint.BuyVolume())
	suite.Equal(40.0, footprint.SellVolume())
}

func (suite *DuckDBDataSourceTestSuite) TestMissingFile() {
	_, err := NewDuckDBDataSource(filepath.Join(suite.tempDir, "missing.parquet"), DefaultOptions(), suite.logger)
	suite.True(errors.HasCode(err, errors.ErrCodeDataSourceUnavailable))
}

func (suite *DuckDBDataSourceTestSuite) TestUnsupportedSchema() {
	path := suite.writeFile("bars.csv", "time,symbol\n")

	options := DefaultOptions()
	options.Schema = "mbo"

	_, err := NewDuckDBDataSource(path, options, suite.logger)
	suite.True(errors.HasCode(err, errors.ErrCodeUnsupportedSchema))
}

func (suite *DuckDBDataSourceTestSuite) TestPreload() {
	path := suite.writeFile("bars.csv", `time,symbol,open,high,low,close,volume
2024-01-01 09:30:00,SPY,1,2,1,2,10
2024-01-01 09:31:00,SPY,2,3,2,0,10
2024-01-01 09:32:00,SPY,3,4,3,4,10
`)

	source, err := NewDuckDBDataSource(path, DefaultOptions(), suite.logger)
	suite.Require().NoError(err)
	defer source.Close()

	preloaded, err := Preload(context.Background(), source)
	suite.Require().NoError(err)
	suite.Equal(1, preloaded.Malformed())
	suite.Len(preloaded.Events(), 2)

	count, err := preloaded.Count(context.Background())
	suite.NoError(err)
	suite.Equal(2, count)
}
