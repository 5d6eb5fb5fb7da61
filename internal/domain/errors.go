package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound signals a missing document record.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrFetchFailed signals that raw document bytes could not be read.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrExtractionFailed signals a document format parse failure.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrInvalidChunkConfig signals a chunker misconfiguration.
	ErrInvalidChunkConfig = errors.New("invalid chunk config")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrLengthMismatch signals a vector/chunk count mismatch.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrGenerationFailed signals a language model call failure.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidStatusTransition signals an illegal document status change.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// EmbeddingError wraps ErrEmbeddingProviderError with the text that failed to embed.
type EmbeddingError struct {
	Text string
	Err  error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed %q: %v", Truncate(e.Text, 64), e.Err)
}

func (e *EmbeddingError) Unwrap() error { return ErrEmbeddingProviderError }

// NewEmbeddingError creates an embedding error for a single input text.
func NewEmbeddingError(text string, err error) error {
	return &EmbeddingError{Text: text, Err: err}
}
