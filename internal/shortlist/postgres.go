package shortlist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/onnwee/freelamatch/internal/ranking"
	"github.com/onnwee/freelamatch/internal/tracing"
)

// pqInvalidTextRepresentation is raised when an id is not a valid uuid.
const pqInvalidTextRepresentation = "22P02"

func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepresentation
}

// PostgresJobRepository implements JobRepository over the jobs table.
type PostgresJobRepository struct {
	db *sql.DB
}

// NewPostgresJobRepository creates a Postgres-backed job repository.
func NewPostgresJobRepository(db *sql.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

// GetJob implements JobRepository.
func (r *PostgresJobRepository) GetJob(ctx context.Context, jobID string) (job *ranking.Job, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "jobs", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, title, COALESCE(skills, '{}'), seniority, budget, model, embedding::text
		FROM jobs
		WHERE id = $1
	`

	var (
		j         ranking.Job
		skills    pq.StringArray
		seniority sql.NullString
		budget    sql.NullFloat64
		model     string
		embedding sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, jobID).Scan(
		&j.ID, &j.Title, &skills, &seniority, &budget, &model, &embedding,
	)
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	j.Skills = []string(skills)
	j.Model = ranking.ContractModel(model)
	if seniority.Valid {
		// An unknown enum value from storage degrades to unset.
		j.Seniority, _ = ranking.ParseSeniority(seniority.String)
	}
	if budget.Valid {
		b := budget.Float64
		j.Budget = &b
	}
	if embedding.Valid {
		var v pgvector.Vector
		if err := v.Parse(embedding.String); err != nil {
			return nil, fmt.Errorf("failed to parse job embedding: %w", err)
		}
		j.Embedding = v.Slice()
	}
	return &j, nil
}

// ListOpenJobIDs implements JobRepository.
func (r *PostgresJobRepository) ListOpenJobIDs(ctx context.Context) (ids []string, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "jobs", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM jobs WHERE status = $1 ORDER BY created_at, id`, JobStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list open jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PostgresProfileRepository implements ProfileRepository by joining
// profiles with freelancer_profiles.
type PostgresProfileRepository struct {
	db *sql.DB
}

// NewPostgresProfileRepository creates a Postgres-backed profile repository.
func NewPostgresProfileRepository(db *sql.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

// GetProfiles implements ProfileRepository.
func (r *PostgresProfileRepository) GetProfiles(ctx context.Context, ids []string) (profiles map[string]*ranking.CandidateProfile, err error) {
	profiles = make(map[string]*ranking.CandidateProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "freelancer_profiles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT p.id, COALESCE(p.trust_score, 0), p.verification_level,
		       COALESCE(fp.skills, '{}'), fp.seniority, fp.rate_hour, fp.availability
		FROM profiles p
		JOIN freelancer_profiles fp ON fp.user_id = p.id
		WHERE p.id = ANY($1::uuid[])
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c            ranking.CandidateProfile
			verification sql.NullInt64
			skills       pq.StringArray
			seniority    sql.NullString
			rate         sql.NullFloat64
			available    sql.NullBool
		)
		if err := rows.Scan(&c.ID, &c.TrustScore, &verification, &skills, &seniority, &rate, &available); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		c.Skills = []string(skills)
		if seniority.Valid {
			c.Seniority, _ = ranking.ParseSeniority(seniority.String)
		}
		if rate.Valid {
			v := rate.Float64
			c.HourlyRate = &v
		}
		if available.Valid {
			v := available.Bool
			c.Available = &v
		}
		if verification.Valid {
			v := int(verification.Int64)
			c.VerificationLevel = &v
		}
		// The first row wins if a user has several freelancer profiles.
		if _, seen := profiles[c.ID]; !seen {
			profiles[c.ID] = &c
		}
	}
	return profiles, rows.Err()
}

// PgvectorSearcher implements SimilaritySearcher with the pgvector cosine
// distance operator over freelancer_profiles.embedding.
type PgvectorSearcher struct {
	db *sql.DB
}

// NewPgvectorSearcher creates a pgvector-backed similarity searcher.
func NewPgvectorSearcher(db *sql.DB) *PgvectorSearcher {
	return &PgvectorSearcher{db: db}
}

// SearchSimilar implements SimilaritySearcher.
func (s *PgvectorSearcher) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) (hits []SimilarityHit, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "freelancer_profiles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT user_id, 1 - (embedding <=> $1) AS similarity
		FROM freelancer_profiles
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1, user_id
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h SimilarityHit
		if err := rows.Scan(&h.CandidateID, &h.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan similarity hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// PostgresEntryStore implements EntryStore over the shortlist table.
type PostgresEntryStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresEntryStore creates a Postgres-backed entry store.
func NewPostgresEntryStore(db *sql.DB, logger *slog.Logger) *PostgresEntryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresEntryStore{db: db, logger: logger}
}

// ReplaceShortlist deletes and re-inserts the job's entries in one
// transaction. A transaction-scoped advisory lock on the job id serializes
// concurrent regenerations of the same job.
func (s *PostgresEntryStore) ReplaceShortlist(ctx context.Context, jobID string, entries []Entry) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "shortlist", tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Always attempt rollback on function exit (no-op after successful commit)
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			s.logger.Warn("failed to rollback shortlist transaction",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()))
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, jobID); err != nil {
		return fmt.Errorf("failed to lock shortlist: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM shortlist WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to delete previous shortlist: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shortlist (job_id, freela_id, rank, score, score_json)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		scoreJSON, mErr := json.Marshal(e.Explanation)
		if mErr != nil {
			return fmt.Errorf("failed to encode explanation: %w", mErr)
		}
		if _, err = stmt.ExecContext(ctx, jobID, e.CandidateID, e.Rank, e.Score, scoreJSON); err != nil {
			return fmt.Errorf("failed to insert entry rank %d: %w", e.Rank, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit shortlist: %w", err)
	}
	return nil
}

// GetShortlist implements EntryStore.
func (s *PostgresEntryStore) GetShortlist(ctx context.Context, jobID string) (entries []Entry, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "shortlist", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT freela_id, rank, COALESCE(score, 0), score_json, created_at
		FROM shortlist
		WHERE job_id = $1
		ORDER BY rank
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shortlist: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e := Entry{JobID: jobID}
		var raw []byte
		var createdAt sql.NullTime
		if err := rows.Scan(&e.CandidateID, &e.Rank, &e.Score, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Explanation); err != nil {
				return nil, fmt.Errorf("failed to decode explanation: %w", err)
			}
		}
		if createdAt.Valid {
			e.CreatedAt = createdAt.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
