package ranking

// Factor is one explained component of a score: the raw value in [0, 1]
// and the fixed weight it is multiplied by.
type Factor struct {
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}

// Contribution returns the weighted value of the factor.
func (f Factor) Contribution() float64 {
	return f.Value * f.Weight
}

// Explanation maps each factor name to its raw value and weight.
// It is persisted verbatim as a shortlist entry's score_json.
type Explanation struct {
	SemanticSimilarity Factor `json:"semanticSimilarity"`
	SkillMatch         Factor `json:"skillMatch"`
	SeniorityMatch     Factor `json:"seniorityMatch"`
	RateFit            Factor `json:"rateFit"`
	Availability       Factor `json:"availability"`
	TrustScore         Factor `json:"trustScore"`
}

// Factors returns the explanation keyed by factor name.
func (e Explanation) Factors() map[string]Factor {
	return map[string]Factor{
		FactorSemanticSimilarity: e.SemanticSimilarity,
		FactorSkillMatch:         e.SkillMatch,
		FactorSeniorityMatch:     e.SeniorityMatch,
		FactorRateFit:            e.RateFit,
		FactorAvailability:       e.Availability,
		FactorTrustScore:         e.TrustScore,
	}
}

// Total sums the weighted contributions of every factor.
func (e Explanation) Total() float64 {
	return e.SemanticSimilarity.Contribution() +
		e.SkillMatch.Contribution() +
		e.SeniorityMatch.Contribution() +
		e.RateFit.Contribution() +
		e.Availability.Contribution() +
		e.TrustScore.Contribution()
}

// Scorer scores one candidate against one job given an externally computed
// semantic similarity.
type Scorer interface {
	Score(job *Job, candidate *CandidateProfile, semanticSimilarity float64) (float64, Explanation)
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(job *Job, candidate *CandidateProfile, semanticSimilarity float64) (float64, Explanation)

// Score calls f.
func (f ScorerFunc) Score(job *Job, candidate *CandidateProfile, semanticSimilarity float64) (float64, Explanation) {
	return f(job, candidate, semanticSimilarity)
}

// DefaultScorer is the fixed-weight scorer backed by Score.
var DefaultScorer Scorer = ScorerFunc(Score)

// Score computes the composite score of candidate for job.
//
//	total = similarity*0.40 + skillOverlap*0.25 + seniorityMatch*0.15
//	      + rateFit*0.10 + available*0.05 + trust/5*0.05
//
// The function is pure. Missing optional fields fall to their zero-contribution
// branch; a nil job or candidate scores 0 on every factor that depends on it.
// The similarity is clamped to [0, 1], which keeps the total in [0, 1].
func Score(job *Job, candidate *CandidateProfile, semanticSimilarity float64) (float64, Explanation) {
	if job == nil {
		job = &Job{}
	}
	if candidate == nil {
		candidate = &CandidateProfile{}
	}

	availability := 0.0
	if candidate.IsAvailable() {
		availability = 1
	}

	e := Explanation{
		SemanticSimilarity: Factor{Value: clamp(semanticSimilarity, 0, 1), Weight: WeightSemanticSimilarity},
		SkillMatch:         Factor{Value: SkillOverlap(job.Skills, candidate.Skills), Weight: WeightSkillMatch},
		SeniorityMatch:     Factor{Value: SeniorityMatch(job.Seniority, candidate.Seniority), Weight: WeightSeniorityMatch},
		RateFit:            Factor{Value: RateFit(job.Model, candidate.HourlyRate, job.Budget), Weight: WeightRateFit},
		Availability:       Factor{Value: availability, Weight: WeightAvailability},
		TrustScore:         Factor{Value: TrustNormalized(candidate.TrustScore), Weight: WeightTrustScore},
	}
	return e.Total(), e
}
