package chat

import (
	"context"

	"github.com/kailas-cloud/docchat/internal/domain"
)

// Retriever finds the stored records most similar to a query vector.
type Retriever interface {
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.ScoredRecord, error)
}

// Embedder vectorizes the user query.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces the final answer from the grounded prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
