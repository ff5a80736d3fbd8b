// Package ranking computes the explainable composite score of a candidate
// profile against a job posting.
package ranking

import "math"

// Factor names as they appear in persisted explanations.
const (
	FactorSemanticSimilarity = "semanticSimilarity"
	FactorSkillMatch         = "skillMatch"
	FactorSeniorityMatch     = "seniorityMatch"
	FactorRateFit            = "rateFit"
	FactorAvailability       = "availability"
	FactorTrustScore         = "trustScore"
)

// Factor weights. They are fixed and must sum to 1.0; changing one requires
// rebalancing the others explicitly.
const (
	WeightSemanticSimilarity = 0.40
	WeightSkillMatch         = 0.25
	WeightSeniorityMatch     = 0.15
	WeightRateFit            = 0.10
	WeightAvailability       = 0.05
	WeightTrustScore         = 0.05
)

// MaxTrustScore is the upper bound of the canonical trust score range [0, 5].
const MaxTrustScore = 5.0

// WeightsSum returns the sum of all factor weights.
func WeightsSum() float64 {
	return WeightSemanticSimilarity +
		WeightSkillMatch +
		WeightSeniorityMatch +
		WeightRateFit +
		WeightAvailability +
		WeightTrustScore
}

// SkillOverlap returns the fraction of job skills the candidate has,
// using case-sensitive exact matching. Duplicates on either side count once.
// Returns 0 when the job lists no skills.
func SkillOverlap(jobSkills, candidateSkills []string) float64 {
	required := make(map[string]struct{}, len(jobSkills))
	for _, s := range jobSkills {
		required[s] = struct{}{}
	}
	if len(required) == 0 {
		return 0
	}

	matched := make(map[string]struct{}, len(candidateSkills))
	for _, s := range candidateSkills {
		if _, ok := required[s]; ok {
			matched[s] = struct{}{}
		}
	}
	return float64(len(matched)) / float64(len(required))
}

// SeniorityMatch returns 1 when both levels are set and equal, otherwise 0.
func SeniorityMatch(job, candidate Seniority) float64 {
	if job == "" || candidate == "" {
		return 0
	}
	if job == candidate {
		return 1
	}
	return 0
}

// RateFit scores how close an hourly rate is to an hourly budget.
// Only hourly jobs with both a rate and a positive budget are scored;
// everything else yields 0.
//
// Formula: max(0, 1 - |rate - budget| / budget)
func RateFit(model ContractModel, rate, budget *float64) float64 {
	if model != ContractHourly || rate == nil || budget == nil || *budget <= 0 {
		return 0
	}
	b := *budget
	return math.Max(0, 1-math.Abs(*rate-b)/b)
}

// TrustNormalized clamps a trust score to [0, MaxTrustScore] and maps it to [0, 1].
func TrustNormalized(trust float64) float64 {
	return clamp(trust, 0, MaxTrustScore) / MaxTrustScore
}

// clamp bounds v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
