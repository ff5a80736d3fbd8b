package ratelimit

import (
	"context"
	"database/sql"

	"github.com/onnwee/freelamatch/internal/tracing"
)

// PostgresStore implements CounterStore by calling the check_rate_limit
// function, which locks the counter row for the duration of the update.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed counter store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Take implements CounterStore.
func (s *PostgresStore) Take(ctx context.Context, key string, p Policy) (remaining int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "rate_limit_counters", tracing.DBOperationUpdate,
		tracing.AttrRateLimit.String(key),
		tracing.AttrRateLimitPolicy.String(p.Name),
	)
	defer func() { endSpan(err) }()

	err = s.db.QueryRowContext(ctx,
		`SELECT check_rate_limit($1, $2, $3, $4)`,
		key, p.MaxTokens, p.intervalSeconds(), p.RefillAmount,
	).Scan(&remaining)
	if err != nil {
		return 0, err
	}
	return remaining, nil
}
