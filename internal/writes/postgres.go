package writes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/onnwee/freelamatch/internal/tracing"
)

// Postgres error codes mapped to ErrReferenceAbsent or ErrInvalidInput.
const (
	pqForeignKeyViolation       = "23503"
	pqInvalidTextRepresentation = "22P02"
)

func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrReferenceAbsent, pqErr.Constraint)
		case pqInvalidTextRepresentation:
			return fmt.Errorf("%w: %s", ErrInvalidInput, pqErr.Message)
		}
	}
	return err
}

// PostgresStore implements Store over the proposals and messages tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateProposal implements Store.
func (s *PostgresStore) CreateProposal(ctx context.Context, p Proposal) (out *Proposal, err error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "proposals", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	p.ID = uuid.New().String()
	var price sql.NullFloat64
	if p.Price != nil {
		price = sql.NullFloat64{Float64: *p.Price, Valid: true}
	}
	var duration sql.NullString
	if p.Duration != nil {
		duration = sql.NullString{String: *p.Duration, Valid: true}
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO proposals (id, job_id, freela_id, message, price, duration)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING status, created_at
	`, p.ID, p.JobID, p.FreelancerID, p.Message, price, duration).Scan(&p.Status, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert proposal: %w", classify(err))
	}
	return &p, nil
}

// CreateMessage implements Store.
func (s *PostgresStore) CreateMessage(ctx context.Context, m Message) (out *Message, err error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "messages", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	m.ID = uuid.New().String()
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, thread_id, sender_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, m.ID, m.ThreadID, m.SenderID, m.Text).Scan(&m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", classify(err))
	}
	return &m, nil
}
