package ranking

import "testing"

// BenchmarkSkillOverlap benchmarks skill overlap on a typical posting.
func BenchmarkSkillOverlap(b *testing.B) {
	job := []string{"Go", "PostgreSQL", "Redis", "Kubernetes", "gRPC", "Terraform"}
	candidate := []string{"Go", "Redis", "Docker", "AWS", "gRPC"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SkillOverlap(job, candidate)
	}
}

// BenchmarkScore benchmarks a full score with every factor populated.
func BenchmarkScore(b *testing.B) {
	budget, rate, available := 80.0, 75.0, true
	job := &Job{
		Skills:    []string{"Go", "PostgreSQL", "Redis", "Kubernetes"},
		Seniority: SenioritySenior,
		Model:     ContractHourly,
		Budget:    &budget,
	}
	candidate := &CandidateProfile{
		Skills:     []string{"Go", "Redis", "Docker"},
		Seniority:  SenioritySenior,
		HourlyRate: &rate,
		Available:  &available,
		TrustScore: 4.2,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Score(job, candidate, 0.82)
	}
}

// BenchmarkScore_Pool benchmarks scoring a retrieval-sized candidate pool.
func BenchmarkScore_Pool(b *testing.B) {
	job := &Job{Skills: []string{"React", "Node.js", "PostgreSQL"}, Seniority: SeniorityPleno}
	pool := make([]*CandidateProfile, 20)
	for i := range pool {
		pool[i] = &CandidateProfile{
			Skills:     []string{"React", "TypeScript"},
			Seniority:  SeniorityPleno,
			TrustScore: float64(i % 6),
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range pool {
			Score(job, c, 0.7)
		}
	}
}
