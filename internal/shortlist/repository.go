package shortlist

import (
	"context"

	"github.com/onnwee/freelamatch/internal/ranking"
)

// JobRepository loads jobs.
type JobRepository interface {
	// GetJob returns the job or ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*ranking.Job, error)
	// ListOpenJobIDs returns the ids of all jobs with status ATIVO.
	ListOpenJobIDs(ctx context.Context) ([]string, error)
}

// ProfileRepository hydrates candidate profiles.
type ProfileRepository interface {
	// GetProfiles returns the profiles found for ids keyed by candidate id.
	// Ids without profile data are absent from the map.
	GetProfiles(ctx context.Context, ids []string) (map[string]*ranking.CandidateProfile, error)
}

// SimilaritySearcher is the vector search collaborator.
type SimilaritySearcher interface {
	// SearchSimilar returns at most limit candidates whose similarity to
	// embedding is above threshold.
	SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]SimilarityHit, error)
}

// EntryStore persists shortlist entries.
type EntryStore interface {
	// ReplaceShortlist atomically replaces every entry of jobID with entries.
	// Concurrent replacements for the same job are serialized.
	ReplaceShortlist(ctx context.Context, jobID string, entries []Entry) error
	// GetShortlist returns the entries of jobID ordered by rank.
	GetShortlist(ctx context.Context, jobID string) ([]Entry, error)
}
