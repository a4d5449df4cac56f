package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/inkback/internal/logger"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
	"go.uber.org/zap"
)

// equityBatchSize bounds the rows per equity insert statement.
const equityBatchSize = 1000

// ResultStore keeps sweep results in an in-memory DuckDB database so they
// can be queried and exported to Parquet.
type ResultStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID              string
	Strategy           string
	Label              string
	Rank               int
	TotalReturnPercent float64
	MaxDrawdownPercent float64
	TotalTrades        int
}

func NewResultStore(logger *logger.Logger) (*ResultStore, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to open result database", err)
	}

	store := &ResultStore{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.Initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

// Initialize creates the runs, trades and equity tables.
func (s *ResultStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			strategy TEXT,
			label TEXT,
			sweep_rank INTEGER,
			parameters TEXT,
			starting_equity DOUBLE,
			ending_equity DOUBLE,
			total_return_pct DOUBLE,
			max_drawdown DOUBLE,
			max_drawdown_pct DOUBLE,
			win_rate DOUBLE,
			profit_factor DOUBLE,
			total_trades INTEGER,
			total_costs DOUBLE,
			events_processed INTEGER,
			cancelled_orders INTEGER,
			anomalies INTEGER,
			recorded_at TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			run_id TEXT,
			trade_index INTEGER,
			side TEXT,
			entry_time TIMESTAMP,
			exit_time TIMESTAMP,
			entry_price DOUBLE,
			exit_price DOUBLE,
			size DOUBLE,
			pnl DOUBLE,
			pnl_pct DOUBLE,
			exit_reason TEXT,
			transaction_costs DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create trades table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS equity (
			run_id TEXT,
			step INTEGER,
			equity DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create equity table: %w", err)
	}

	return nil
}

// Save records a run with its trades and equity curve. rank is the position
// of the run in its ranked sweep. An empty runID is replaced by a new one.
// The id used is returned.
func (s *ResultStore) Save(runID string, strategyName string, rank int, result types.BacktestResult) (string, error) {
	if runID == "" {
		runID = uuid.New().String()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to begin transaction", err)
	}

	_, err = s.sq.
		Insert("runs").
		Columns(
			"run_id", "strategy", "label", "sweep_rank", "parameters", "starting_equity", "ending_equity",
			"total_return_pct", "max_drawdown", "max_drawdown_pct", "win_rate", "profit_factor",
			"total_trades", "total_costs", "events_processed", "cancelled_orders", "anomalies", "recorded_at",
		).
		Values(
			runID, strategyName, result.Label, rank, types.NewStrategyParams(result.Parameters).String(),
			result.StartingEquity, result.EndingEquity, result.TotalReturnPercent, result.MaxDrawdown,
			result.MaxDrawdownPercent, result.WinRate, result.ProfitFactor, result.TotalTrades,
			result.TotalTransactionCosts, result.EventsProcessed, result.CancelledOrders,
			result.Anomalies.Total(), time.Now().UTC(),
		).
		RunWith(tx).
		Exec()
	if err != nil {
		tx.Rollback()

		return "", errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to insert run", err)
	}

	for i, trade := range result.Trades {
		_, err = s.sq.
			Insert("trades").
			Columns(
				"run_id", "trade_index", "side", "entry_time", "exit_time", "entry_price", "exit_price",
				"size", "pnl", "pnl_pct", "exit_reason", "transaction_costs",
			).
			Values(
				runID, i, string(trade.Side), trade.EntryTime, trade.ExitTime, trade.EntryPrice, trade.ExitPrice,
				trade.Size, trade.PnL, trade.PnLPercent, string(trade.ExitReason), trade.TransactionCosts,
			).
			RunWith(tx).
			Exec()
		if err != nil {
			tx.Rollback()

			return "", errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to insert trade", err)
		}
	}

	for start := 0; start < len(result.EquityCurve); start += equityBatchSize {
		end := min(start+equityBatchSize, len(result.EquityCurve))

		insert := s.sq.Insert("equity").Columns("run_id", "step", "equity")
		for step := start; step < end; step++ {
			insert = insert.Values(runID, step, result.EquityCurve[step])
		}

		if _, err = insert.RunWith(tx).Exec(); err != nil {
			tx.Rollback()

			return "", errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to insert equity curve", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to commit run", err)
	}

	return runID, nil
}

// TopRuns returns up to limit runs ordered by total return, best first.
func (s *ResultStore) TopRuns(limit int) ([]RunRecord, error) {
	query, args, err := s.sq.
		Select("run_id", "strategy", "label", "sweep_rank", "total_return_pct", "max_drawdown_pct", "total_trades").
		From("runs").
		OrderBy("total_return_pct DESC", "strategy ASC", "sweep_rank ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query runs", err)
	}
	defer rows.Close()

	var records []RunRecord

	for rows.Next() {
		var record RunRecord
		if err := rows.Scan(
			&record.RunID, &record.Strategy, &record.Label, &record.Rank,
			&record.TotalReturnPercent, &record.MaxDrawdownPercent, &record.TotalTrades,
		); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan run", err)
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

// EquityCurve returns the stored curve of a run in step order.
func (s *ResultStore) EquityCurve(runID string) ([]float64, error) {
	query, args, err := s.sq.
		Select("equity").
		From("equity").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("step ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query equity", err)
	}
	defer rows.Close()

	var curve []float64

	for rows.Next() {
		var point float64
		if err := rows.Scan(&point); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan equity point", err)
		}

		curve = append(curve, point)
	}

	return curve, rows.Err()
}

// TradeCount returns the number of stored trades of a run.
func (s *ResultStore) TradeCount(runID string) (int, error) {
	query, args, err := s.sq.Select("COUNT(*)").From("trades").Where(squirrel.Eq{"run_id": runID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count trades", err)
	}

	return count, nil
}

// Cleanup drops all stored results.
func (s *ResultStore) Cleanup() error {
	// Squirrel has no DROP support
	_, err := s.db.Exec(`
		DROP TABLE IF EXISTS equity;
		DROP TABLE IF EXISTS trades;
		DROP TABLE IF EXISTS runs;
	`)
	if err != nil {
		return fmt.Errorf("failed to cleanup tables: %w", err)
	}

	return s.Initialize()
}

// Write exports every table to a Parquet file under path.
func (s *ResultStore) Write(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create result directory", err)
	}

	for _, table := range []string{"runs", "trades", "equity"} {
		target := filepath.Join(path, table+".parquet")

		// Squirrel has no COPY support
		if _, err := s.db.Exec(fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, table, target)); err != nil {
			return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to export %s to Parquet", table)
		}
	}

	s.logger.Info("Exported backtest results to Parquet", zap.String("path", path))

	return nil
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}
