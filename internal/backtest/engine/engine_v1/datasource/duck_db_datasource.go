package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/inkback/internal/logger"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
	"go.uber.org/zap"
)

// DuckDBDataSource replays a Parquet or CSV file through an in-memory DuckDB view.
type DuckDBDataSource struct {
	db      *sql.DB
	logger  *logger.Logger
	sq      squirrel.StatementBuilderType
	options Options
	path    string
}

// NewDuckDBDataSource opens the file at path and exposes it as the view
// named by options.Table. Files ending in .csv are read with read_csv_auto,
// everything else with read_parquet.
func NewDuckDBDataSource(path string, options Options, logger *logger.Logger) (*DuckDBDataSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "market data file %s is not readable", path)
	}

	if options.Table == "" {
		options.Table = DefaultOptions().Table
	}

	if options.Schema == "" {
		options.Schema = types.SchemaOHLCV
	}

	if _, err := schemaColumns(options.Schema); err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	source := &DuckDBDataSource{
		db:      db,
		logger:  logger,
		sq:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		options: options,
		path:    path,
	}

	if err := source.createView(); err != nil {
		db.Close()

		return nil, err
	}

	return source, nil
}

func (d *DuckDBDataSource) createView() error {
	reader := "read_parquet"
	if strings.EqualFold(filepath.Ext(d.path), ".csv") {
		reader = "read_csv_auto"
	}

	d.logger.Debug("Initializing DuckDB data source",
		zap.String("path", d.path),
		zap.String("reader", reader),
		zap.String("schema", string(d.options.Schema)),
	)

	// squirrel has no CREATE VIEW support
	query := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM %s('%s')`,
		d.options.Table, reader, strings.ReplaceAll(d.path, "'", "''"))

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to load market data from %s", d.path)
	}

	return nil
}

// Open implements DataSource.
func (d *DuckDBDataSource) Open(ctx context.Context) iter.Seq2[types.MarketEvent, error] {
	return func(yield func(types.MarketEvent, error) bool) {
		query, args, err := buildEventQuery(d.sq, d.options)
		if err != nil {
			yield(nil, err)

			return
		}

		rows, err := d.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query market data", err))

			return
		}
		defer rows.Close()

		for rows.Next() {
			event, err := scanEvent(d.options.Schema, rows)
			if err != nil {
				d.logger.Warn("Skipping malformed market data row", zap.Error(err))
			}

			if !yield(event, err) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating market data", err))
		}
	}
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count(ctx context.Context) (int, error) {
	query, args, err := buildCountQuery(d.sq, d.options)
	if err != nil {
		return 0, err
	}

	var count int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count market data", err)
	}

	return count, nil
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	return d.db.Close()
}
