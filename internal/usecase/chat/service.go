// Package chat answers questions grounded in previously ingested documents.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/logger"
)

// Service implements retrieval-augmented question answering: embed the
// query, retrieve the nearest chunks, prompt the model with them.
type Service struct {
	embedder     Embedder
	retriever    Retriever
	generator    Generator
	topK         int
	cannotAnswer string
}

// New creates a chat service.
func New(embedder Embedder, retriever Retriever, generator Generator, topK int, cannotAnswer string) *Service {
	return &Service{
		embedder:     embedder,
		retriever:    retriever,
		generator:    generator,
		topK:         topK,
		cannotAnswer: cannotAnswer,
	}
}

// Answer responds to a query from the ingested documents. When nothing
// relevant is stored, the configured cannot-answer message comes back with
// no sources and the language model is not called.
func (s *Service) Answer(ctx context.Context, query string) (domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Answer{}, fmt.Errorf("empty query")
	}

	log := logger.FromContext(ctx)

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("embed query: %w", err)
	}

	records, err := s.retriever.SimilaritySearch(ctx, vector, s.topK)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("similarity search: %w", err)
	}

	if len(records) == 0 {
		log.Info("No context retrieved for query")
		return domain.Answer{Text: s.cannotAnswer}, nil
	}

	prompt := buildPrompt(query, s.cannotAnswer, records)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	log.Info("Answered query",
		zap.Int("retrieved", len(records)),
		zap.Float64("top_score", records[0].Score))

	return domain.Answer{
		Text:    text,
		Sources: collectSources(records),
	}, nil
}
