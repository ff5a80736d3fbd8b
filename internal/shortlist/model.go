// Package shortlist retrieves, ranks and persists the top candidates for a job.
package shortlist

import (
	"time"

	"github.com/onnwee/freelamatch/internal/ranking"
)

// DefaultTopK is the maximum number of entries in a shortlist.
const DefaultTopK = 5

// Retrieval defaults passed to the similarity collaborator.
const (
	DefaultMatchThreshold = 0.5
	DefaultMatchCount     = 20
)

// JobStatusOpen is the status of jobs accepting proposals.
const JobStatusOpen = "ATIVO"

// SimilarityHit is one candidate returned by vector search.
type SimilarityHit struct {
	CandidateID string  `json:"profileId"`
	Similarity  float64 `json:"similarity"`
}

// Entry is one ranked row of a job's shortlist.
type Entry struct {
	JobID       string              `json:"jobId"`
	CandidateID string              `json:"candidateId"`
	Rank        int                 `json:"rank"`
	Score       float64             `json:"score"`
	Explanation ranking.Explanation `json:"explanation"`
	CreatedAt   time.Time           `json:"createdAt,omitempty"`
}

// Result is the outcome of one generation run.
type Result struct {
	JobID   string  `json:"jobId"`
	Count   int     `json:"count"`
	Entries []Entry `json:"entries"`
}
