// Package openai adapts the OpenAI-compatible HTTP API to the domain
// embedding and generation interfaces.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/metrics"
)

// Embedder is an embedding provider using the OpenAI-compatible API.
// A weighted semaphore bounds in-flight requests process-wide and an
// optional rate limiter smooths the request rate; both are shared by all
// callers of one instance.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	provider   string
	maxBatch   int
	maxRetries int
	sem        *semaphore.Weighted
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Dimensions     int
	Provider       string
	MaxBatchSize   int
	MaxInFlight    int
	MaxRetries     int
	RequestsPerSec float64
	Logger         *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = 256
	}
	inFlight := cfg.MaxInFlight
	if inFlight <= 0 {
		inFlight = 1
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		provider:   cfg.Provider,
		maxBatch:   maxBatch,
		maxRetries: cfg.MaxRetries,
		sem:        semaphore.NewWeighted(int64(inFlight)),
		limiter:    limiter,
		logger:     cfg.Logger,
	}
}

// EmbedBatch implements domain.Embedder. Input order is preserved; any
// failed API batch fails the whole call so callers never store partial
// results.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.maxBatch {
		end := start + e.maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery implements domain.Embedder for a single query text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatch performs one API request with concurrency bound, rate limit
// and retries.
func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire embedding slot: %w", err)
	}
	defer e.sem.Release(1)

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	var resp openai.EmbeddingResponse
	var err error
	for attempt := 0; ; attempt++ {
		if e.limiter != nil {
			if werr := e.limiter.Wait(ctx); werr != nil {
				return nil, fmt.Errorf("rate limiter: %w", werr)
			}
		}

		start := time.Now()
		resp, err = e.client.CreateEmbeddings(ctx, req)
		duration := time.Since(start)

		if err == nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "success").Inc()
			metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, string(e.model)).Observe(duration.Seconds())
			break
		}

		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, string(e.model), "error").Inc()

		if attempt >= e.maxRetries || !retryable(err) || ctx.Err() != nil {
			return nil, e.wrapErr(err, texts)
		}

		metrics.EmbeddingRetriesTotal.WithLabelValues(e.provider, string(e.model)).Inc()
		delay := backoff(attempt)
		e.logger.Warn("Embedding request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := sleepCtx(ctx, delay); serr != nil {
			return nil, e.wrapErr(err, texts)
		}
	}

	return e.parseResponse(&resp, texts)
}

// parseResponse validates count, order and dimensionality of the vectors.
func (e *Embedder) parseResponse(resp *openai.EmbeddingResponse, texts []string) ([][]float32, error) {
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs: %w",
			len(resp.Data), len(texts), domain.ErrEmbeddingProviderError)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range: %w",
				item.Index, domain.ErrEmbeddingProviderError)
		}
		if e.dimensions > 0 && len(item.Embedding) != e.dimensions {
			return nil, fmt.Errorf("embedding has dim %d, expected %d: %w",
				len(item.Embedding), e.dimensions, domain.ErrVectorDimMismatch)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding response missing vector %d: %w",
				i, domain.ErrEmbeddingProviderError)
		}
	}

	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "prompt").
			Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, string(e.model), "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	return vectors, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// wrapErr maps the final API failure onto the domain error taxonomy. The
// first input text identifies the failed batch in the error message.
func (e *Embedder) wrapErr(err error, texts []string) error {
	if rateLimited(err) {
		return fmt.Errorf("%v: %w", parseAPIError(err), domain.ErrRateLimited)
	}
	if len(texts) > 0 {
		return domain.NewEmbeddingError(texts[0], parseAPIError(err))
	}
	return parseAPIError(err)
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrEmbeddingProviderError for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrEmbeddingProviderError

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
