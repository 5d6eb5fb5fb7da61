package openai

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const retryBaseDelay = 500 * time.Millisecond

// retryable reports whether an API error is worth retrying: rate limits,
// server-side failures and transport errors. 4xx client errors are not.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests ||
			reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	// no structured status: connection reset, timeout, DNS
	return true
}

// rateLimited reports whether the provider answered 429.
func rateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

// backoff returns the delay before retry attempt n (0-based): exponential
// with up to 50% jitter so concurrent workers do not retry in lockstep.
func backoff(attempt int) time.Duration {
	d := retryBaseDelay << attempt
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
