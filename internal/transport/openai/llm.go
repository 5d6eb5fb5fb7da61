package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/metrics"
)

// ChatClient produces completions via the OpenAI-compatible chat API.
type ChatClient struct {
	client     *openai.Client
	model      string
	provider   string
	maxRetries int
	logger     *zap.Logger
}

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Provider   string
	MaxRetries int
	Logger     *zap.Logger
}

// NewChatClient creates an OpenAI-compatible chat completion client.
func NewChatClient(cfg *ChatConfig) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &ChatClient{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		provider:   cfg.Provider,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
}

// Generate implements domain.Generator. The prompt goes as a single user
// message; the first choice's content is returned verbatim.
func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err = c.client.CreateChatCompletion(ctx, req)
		duration := time.Since(start)

		if err == nil {
			metrics.GenerationRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
			metrics.GenerationRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
			break
		}

		metrics.GenerationRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()

		if attempt >= c.maxRetries || !retryable(err) || ctx.Err() != nil {
			return "", wrapGenerationError(err)
		}

		delay := backoff(attempt)
		c.logger.Warn("Chat completion failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := sleepCtx(ctx, delay); serr != nil {
			return "", wrapGenerationError(err)
		}
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response: %w", domain.ErrGenerationFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

// wrapGenerationError maps an API failure onto the domain error taxonomy.
func wrapGenerationError(err error) error {
	if rateLimited(err) {
		return fmt.Errorf("chat completion: %v: %w", err, domain.ErrRateLimited)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrGenerationFailed)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("chat API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), domain.ErrGenerationFailed)
	}
	return fmt.Errorf("chat completion failed: %v: %w", err, domain.ErrGenerationFailed)
}
