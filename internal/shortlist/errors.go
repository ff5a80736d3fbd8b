package shortlist

import "errors"

var (
	// ErrJobNotFound is returned when the job to shortlist does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotEmbedded is returned when the job has no embedding to search with.
	ErrJobNotEmbedded = errors.New("job has no embedding")

	// ErrUpstreamRetrieval is returned when candidate retrieval or hydration
	// fails, including timeouts. The pipeline does not retry it.
	ErrUpstreamRetrieval = errors.New("upstream retrieval failed")

	// ErrPersistence is returned when the shortlist could not be replaced.
	// No partial set of entries is left visible.
	ErrPersistence = errors.New("shortlist persistence failed")
)
