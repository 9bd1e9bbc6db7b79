package driven

import (
	"context"
	"time"
)

// EmbeddingService turns text into vectors. Every vector it returns has
// Dimensions() entries; a collection records the model and dimension it
// was built with and refuses vectors from any other.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int
	ModelName() string

	// Ping checks the backend is reachable and the model usable, without
	// embedding anything.
	Ping(ctx context.Context) error

	Close() error
}

// EmbeddingCache stores vectors keyed by an opaque string.
// A miss is reported as (nil, false, nil); errors are reserved for backend faults.
type EmbeddingCache interface {
	// Get returns the cached vector for key.
	Get(ctx context.Context, key string) ([]float32, bool, error)

	// Set stores a vector. ttl of zero means no expiry.
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error

	// Close releases resources.
	Close() error
}
