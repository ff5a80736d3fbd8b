package shortlist

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/onnwee/freelamatch/internal/ranking"
)

// InMemoryJobRepository is an in-memory JobRepository for tests and local runs.
type InMemoryJobRepository struct {
	mu     sync.RWMutex
	jobs   map[string]*ranking.Job
	status map[string]string
	order  []string
}

// NewInMemoryJobRepository creates an empty job repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobs:   make(map[string]*ranking.Job),
		status: make(map[string]string),
	}
}

// AddJob stores job with the given status.
func (r *InMemoryJobRepository) AddJob(job *ranking.Job, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; !exists {
		r.order = append(r.order, job.ID)
	}
	r.jobs[job.ID] = job
	r.status[job.ID] = status
}

// GetJob implements JobRepository.
func (r *InMemoryJobRepository) GetJob(ctx context.Context, jobID string) (*ranking.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

// ListOpenJobIDs implements JobRepository.
func (r *InMemoryJobRepository) ListOpenJobIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for _, id := range r.order {
		if r.status[id] == JobStatusOpen {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// InMemoryProfileRepository is an in-memory ProfileRepository.
// It also answers similarity queries by brute-force cosine similarity.
type InMemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*ranking.CandidateProfile
	order    []string
}

// NewInMemoryProfileRepository creates an empty profile repository.
func NewInMemoryProfileRepository() *InMemoryProfileRepository {
	return &InMemoryProfileRepository{
		profiles: make(map[string]*ranking.CandidateProfile),
	}
}

// AddProfile stores a candidate profile.
func (r *InMemoryProfileRepository) AddProfile(p *ranking.CandidateProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.profiles[p.ID] = p
}

// GetProfiles implements ProfileRepository.
func (r *InMemoryProfileRepository) GetProfiles(ctx context.Context, ids []string) (map[string]*ranking.CandidateProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]*ranking.CandidateProfile, len(ids))
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			cp := *p
			result[id] = &cp
		}
	}
	return result, nil
}

// SearchSimilar implements SimilaritySearcher over the stored embeddings.
// Results are ordered by descending similarity, then insertion order.
func (r *InMemoryProfileRepository) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]SimilarityHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []SimilarityHit
	for _, id := range r.order {
		p := r.profiles[id]
		if len(p.Embedding) == 0 || len(p.Embedding) != len(embedding) {
			continue
		}
		sim := cosineSimilarity(embedding, p.Embedding)
		if sim > threshold {
			hits = append(hits, SimilarityHit{CandidateID: id, Similarity: sim})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// InMemoryEntryStore is an in-memory EntryStore.
// A replacement swaps the whole slice under the lock, so readers see
// either the old set or the new one.
type InMemoryEntryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewInMemoryEntryStore creates an empty entry store.
func NewInMemoryEntryStore() *InMemoryEntryStore {
	return &InMemoryEntryStore{
		entries: make(map[string][]Entry),
	}
}

// ReplaceShortlist implements EntryStore.
func (s *InMemoryEntryStore) ReplaceShortlist(ctx context.Context, jobID string, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jobID] = cp
	return nil
}

// GetShortlist implements EntryStore.
func (s *InMemoryEntryStore) GetShortlist(ctx context.Context, jobID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.entries[jobID]
	result := make([]Entry, len(entries))
	copy(result, entries)
	return result, nil
}
