package shortlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/freelamatch/internal/ranking"
	"github.com/onnwee/freelamatch/internal/tracing"
)

// Default pipeline limits.
const (
	DefaultRetrievalTimeout = 10 * time.Second
	DefaultScoreConcurrency = 4
)

// Config configures a Pipeline. Zero values fall back to the defaults.
type Config struct {
	// TopK is the maximum number of persisted entries.
	TopK int
	// MatchThreshold is the similarity floor passed to the searcher. Nil
	// means DefaultMatchThreshold; an explicit 0 keeps every hit.
	MatchThreshold *float64
	// MatchCount caps the number of retrieved candidates.
	MatchCount int
	// RetrievalTimeout bounds the similarity query and profile hydration.
	RetrievalTimeout time.Duration
	// ScoreConcurrency bounds the goroutines scoring one run.
	ScoreConcurrency int
	// Scorer scores candidates; defaults to ranking.DefaultScorer.
	Scorer ranking.Scorer
	// Logger for pipeline activity.
	Logger *slog.Logger
	// Metrics for generation tracking.
	Metrics *Metrics
}

// Pipeline generates and persists shortlists.
type Pipeline struct {
	jobs      JobRepository
	profiles  ProfileRepository
	searcher  SimilaritySearcher
	store     EntryStore
	cfg       Config
	threshold float64
}

// NewPipeline creates a shortlist pipeline.
func NewPipeline(jobs JobRepository, profiles ProfileRepository, searcher SimilaritySearcher, store EntryStore, cfg Config) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	threshold := DefaultMatchThreshold
	if cfg.MatchThreshold != nil {
		threshold = *cfg.MatchThreshold
	}
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = DefaultMatchCount
	}
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = DefaultRetrievalTimeout
	}
	if cfg.ScoreConcurrency <= 0 {
		cfg.ScoreConcurrency = DefaultScoreConcurrency
	}
	if cfg.Scorer == nil {
		cfg.Scorer = ranking.DefaultScorer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		jobs:      jobs,
		profiles:  profiles,
		searcher:  searcher,
		store:     store,
		cfg:       cfg,
		threshold: threshold,
	}
}

// scored is one hydrated candidate with its score, in retrieval order.
type scored struct {
	candidateID string
	total       float64
	explanation ranking.Explanation
}

// Generate rebuilds the shortlist of jobID and replaces the persisted one.
//
// Errors wrap ErrJobNotFound, ErrJobNotEmbedded, ErrUpstreamRetrieval or
// ErrPersistence. An empty pool persists an empty shortlist and succeeds.
func (p *Pipeline) Generate(ctx context.Context, jobID string) (result *Result, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "shortlist.generate", tracing.AttrJobID.String(jobID))
	defer func() {
		endSpan(err)
		p.record(err, time.Since(start))
	}()

	job, err := p.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load job: %w", ErrUpstreamRetrieval, err)
	}
	if len(job.Embedding) == 0 {
		return nil, ErrJobNotEmbedded
	}

	hits, err := p.retrieve(ctx, job)
	if err != nil {
		return nil, err
	}

	profiles, err := p.hydrate(ctx, hits)
	if err != nil {
		return nil, err
	}

	ranked, err := p.score(ctx, job, hits, profiles)
	if err != nil {
		return nil, err
	}

	entries := buildEntries(jobID, ranked, p.cfg.TopK)

	if err := p.store.ReplaceShortlist(ctx, jobID, entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObservePersisted(len(entries))
	}
	tracing.SetAttributes(ctx, tracing.AttrShortlistCount.Int(len(entries)))

	p.cfg.Logger.InfoContext(ctx, "shortlist generated",
		slog.String("job_id", jobID),
		slog.Int("retrieved", len(hits)),
		slog.Int("hydrated", len(ranked)),
		slog.Int("count", len(entries)),
	)

	return &Result{JobID: jobID, Count: len(entries), Entries: entries}, nil
}

// Get returns the persisted shortlist of jobID.
func (p *Pipeline) Get(ctx context.Context, jobID string) (*Result, error) {
	if _, err := p.jobs.GetJob(ctx, jobID); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load job: %w", ErrUpstreamRetrieval, err)
	}
	entries, err := p.store.GetShortlist(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return &Result{JobID: jobID, Count: len(entries), Entries: entries}, nil
}

// retrieve asks the searcher for the candidate pool and drops repeated ids,
// keeping the first occurrence.
func (p *Pipeline) retrieve(ctx context.Context, job *ranking.Job) (hits []SimilarityHit, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "shortlist.retrieve")
	defer func() { endSpan(err) }()

	rctx, cancel := context.WithTimeout(ctx, p.cfg.RetrievalTimeout)
	defer cancel()

	raw, err := p.searcher.SearchSimilar(rctx, job.Embedding, p.threshold, p.cfg.MatchCount)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %w", ErrUpstreamRetrieval, err)
	}

	seen := make(map[string]struct{}, len(raw))
	hits = make([]SimilarityHit, 0, len(raw))
	for _, h := range raw {
		if _, dup := seen[h.CandidateID]; dup {
			continue
		}
		seen[h.CandidateID] = struct{}{}
		hits = append(hits, h)
	}

	if p.cfg.Metrics != nil {
		p.cfg.Metrics.ObserveRetrieved(len(hits))
	}
	tracing.SetAttributes(ctx, attribute.Int("shortlist.retrieved", len(hits)))
	return hits, nil
}

func (p *Pipeline) hydrate(ctx context.Context, hits []SimilarityHit) (profiles map[string]*ranking.CandidateProfile, err error) {
	if len(hits) == 0 {
		return map[string]*ranking.CandidateProfile{}, nil
	}

	ctx, endSpan := tracing.StartSpan(ctx, "shortlist.hydrate")
	defer func() { endSpan(err) }()

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.CandidateID
	}

	hctx, cancel := context.WithTimeout(ctx, p.cfg.RetrievalTimeout)
	defer cancel()

	profiles, err = p.profiles.GetProfiles(hctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: load profiles: %w", ErrUpstreamRetrieval, err)
	}
	return profiles, nil
}

// score ranks hydrated candidates by total score descending. Equal scores
// keep retrieval order.
func (p *Pipeline) score(ctx context.Context, job *ranking.Job, hits []SimilarityHit, profiles map[string]*ranking.CandidateProfile) ([]scored, error) {
	pool := make([]SimilarityHit, 0, len(hits))
	for _, h := range hits {
		if _, ok := profiles[h.CandidateID]; ok {
			pool = append(pool, h)
		}
	}

	results := make([]scored, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ScoreConcurrency)
	for i, h := range pool {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			total, explanation := p.cfg.Scorer.Score(job, profiles[h.CandidateID], h.Similarity)
			results[i] = scored{candidateID: h.CandidateID, total: total, explanation: explanation}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring aborted: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].total > results[j].total
	})
	return results, nil
}

// buildEntries truncates ranked to topK and assigns dense 1-based ranks.
func buildEntries(jobID string, ranked []scored, topK int) []Entry {
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	entries := make([]Entry, len(ranked))
	for i, s := range ranked {
		entries[i] = Entry{
			JobID:       jobID,
			CandidateID: s.candidateID,
			Rank:        i + 1,
			Score:       s.total,
			Explanation: s.explanation,
		}
	}
	return entries
}

func (p *Pipeline) record(err error, elapsed time.Duration) {
	if p.cfg.Metrics == nil {
		return
	}
	p.cfg.Metrics.IncGenerations(statusFor(err))
	p.cfg.Metrics.ObserveDuration(elapsed.Seconds())
}

func statusFor(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrJobNotFound):
		return StatusNotFound
	case errors.Is(err, ErrJobNotEmbedded):
		return StatusNotEmbedded
	case errors.Is(err, ErrUpstreamRetrieval):
		return StatusUpstreamFailed
	case errors.Is(err, ErrPersistence):
		return StatusPersistenceFailed
	default:
		return StatusAborted
	}
}
