package health

import (
	"context"
	"fmt"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DBChecker implements health checking for the Postgres pool backing
// profiles, jobs, shortlists and the rate limit table.
type DBChecker struct {
	db Pinger
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db Pinger) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}
