package domain

import "context"

// Embedder converts a batch of texts into fixed-dimension vectors.
// Implementations return one vector per input, order-preserving, and fail
// the whole batch on any unrecoverable error (no partial success).
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HealthChecker verifies remote provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Generator produces a completion for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
