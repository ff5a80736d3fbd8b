// Package ranking computes the explainable composite score of a candidate
// profile against a job posting.
//
// Basic Usage:
//
//	// similarity comes from the vector search collaborator
//	total, explanation := ranking.Score(job, candidate, hit.Similarity)
//
//	// explanation marshals to the persisted score_json shape:
//	// {"semanticSimilarity":{"value":0.6,"weight":0.4}, "skillMatch":{...}, ...}
//	raw, _ := json.Marshal(explanation)
//
// Factors:
//
//	semanticSimilarity  0.40  similarity supplied by the caller, clamped to [0, 1]
//	skillMatch          0.25  matched job skills / job skills (case-sensitive, 0 if none)
//	seniorityMatch      0.15  1 only when both levels are set and equal
//	rateFit             0.10  hourly jobs with rate and budget: max(0, 1 - |rate-budget|/budget)
//	availability        0.05  1 when the availability flag is present and true
//	trustScore          0.05  trust clamped to [0, 5], divided by 5
//
// The weights are constants and sum to 1.0. There is no calibration file:
// scores persisted across regenerations must stay comparable.
package ranking
