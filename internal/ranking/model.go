package ranking

import "fmt"

// Seniority is the experience level shared by jobs and candidates.
// The zero value means "not specified".
type Seniority string

// Seniority levels.
const (
	SeniorityJunior       Seniority = "JUNIOR"
	SeniorityPleno        Seniority = "PLENO"
	SenioritySenior       Seniority = "SENIOR"
	SeniorityEspecialista Seniority = "ESPECIALISTA"
)

var knownSeniority = map[Seniority]struct{}{
	SeniorityJunior:       {},
	SeniorityPleno:        {},
	SenioritySenior:       {},
	SeniorityEspecialista: {},
}

// ParseSeniority converts a stored value into a Seniority.
// An empty string yields the zero value without error.
func ParseSeniority(s string) (Seniority, error) {
	if s == "" {
		return "", nil
	}
	lvl := Seniority(s)
	if !lvl.Valid() {
		return "", fmt.Errorf("unknown seniority level %q", s)
	}
	return lvl, nil
}

// Valid reports whether s is one of the known levels.
func (s Seniority) Valid() bool {
	_, ok := knownSeniority[s]
	return ok
}

// ContractModel is how a job is paid.
type ContractModel string

// Contract models as stored by the marketplace.
const (
	ContractFixed  ContractModel = "FIXO"
	ContractHourly ContractModel = "HORA"
)

// Job is the subset of a job posting the scorer and pipeline need.
type Job struct {
	ID        string
	Title     string
	Skills    []string
	Seniority Seniority // zero value when not specified
	Budget    *float64
	Model     ContractModel
	Embedding []float32
}

// CandidateProfile is the subset of a freelancer profile the scorer needs.
type CandidateProfile struct {
	ID                string
	Skills            []string
	Seniority         Seniority // zero value when not specified
	HourlyRate        *float64
	Available         *bool // nil is treated as not available
	TrustScore        float64
	VerificationLevel *int
	Embedding         []float32
}

// IsAvailable reports whether the availability flag is present and true.
func (c *CandidateProfile) IsAvailable() bool {
	return c.Available != nil && *c.Available
}
