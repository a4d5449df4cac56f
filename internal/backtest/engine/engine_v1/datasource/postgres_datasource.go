package datasource

import (
	"context"
	"iter"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rxtech-lab/inkback/internal/logger"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
	"go.uber.org/zap"
)

// PostgresDataSource replays a table through a pgx connection pool. Each
// pass acquires its own connection, so concurrent runs stream in parallel.
type PostgresDataSource struct {
	pool    *pgxpool.Pool
	logger  *logger.Logger
	sq      squirrel.StatementBuilderType
	options Options
}

// NewPostgresDataSource connects to dsn and verifies the connection.
func NewPostgresDataSource(ctx context.Context, dsn string, options Options, logger *logger.Logger) (*PostgresDataSource, error) {
	if options.Table == "" {
		options.Table = DefaultOptions().Table
	}

	if options.Schema == "" {
		options.Schema = types.SchemaOHLCV
	}

	if _, err := schemaColumns(options.Schema); err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "parse postgres dsn", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "connect to postgres", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "ping postgres", err)
	}

	return &PostgresDataSource{
		pool:    pool,
		logger:  logger,
		sq:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		options: options,
	}, nil
}

// Open implements DataSource.
func (p *PostgresDataSource) Open(ctx context.Context) iter.Seq2[types.MarketEvent, error] {
	return func(yield func(types.MarketEvent, error) bool) {
		query, args, err := buildEventQuery(p.sq, p.options)
		if err != nil {
			yield(nil, err)

			return
		}

		rows, err := p.pool.Query(ctx, query, args...)
		if err != nil {
			yield(nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query market data", err))

			return
		}
		defer rows.Close()

		for rows.Next() {
			event, err := scanEvent(p.options.Schema, rows)
			if err != nil {
				p.logger.Warn("Skipping malformed market data row",
					zap.String("table", p.options.Table),
					zap.Error(err),
				)
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
func (p *PostgresDataSource) Count(ctx context.Context) (int, error) {
	query, args, err := buildCountQuery(p.sq, p.options)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count market data", err)
	}

	return int(count), nil
}

// Close implements DataSource.
func (p *PostgresDataSource) Close() error {
	p.pool.Close()

	return nil
}
