package customers

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/projectdesk/api-proxy/internal/errs"
	"github.com/projectdesk/api-proxy/internal/metrics"
)

// PostgresStore reads customer links straight from the project database.
// The DSN must carry a role allowed to read the table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	query string
}

// NewPostgresStore connects to dsn and verifies the connection
func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 0
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, query: selectQuery(table)}, nil
}

func selectQuery(table string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE id::text = $1 LIMIT 2",
		pgx.Identifier{Column}.Sanitize(), pgx.Identifier{table}.Sanitize())
}

// CustomerLink selects the customer id of exactly one row keyed by userID
func (s *PostgresStore) CustomerLink(ctx context.Context, userID string) (*Link, error) {
	started := time.Now()
	rows, err := s.pool.Query(ctx, s.query, userID)
	if err != nil {
		metrics.ObserveUpstream(metrics.ProviderPostgres, metrics.OutcomeUnreachable, started)
		return nil, errs.Wrap(errs.UpstreamUnreachable, "Failed to look up customer", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[*string])
	if err != nil {
		metrics.ObserveUpstream(metrics.ProviderPostgres, metrics.OutcomeInvalid, started)
		return nil, errs.Wrap(errs.UpstreamProtocol, "Failed to look up customer", err)
	}
	metrics.ObserveUpstream(metrics.ProviderPostgres, metrics.OutcomeOK, started)

	return linkFrom(userID, ids)
}

// Close releases the pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
