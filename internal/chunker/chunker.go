// Package chunker splits extracted document text into overlapping segments.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/docchat/internal/domain"
)

// DefaultSeparators orders split points from coarse to fine: paragraph,
// line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter divides text into chunks of at most ChunkSize runes, adjacent
// chunks overlapping by up to ChunkOverlap runes. Splitting is recursive:
// the coarsest separator is tried first and oversized segments are re-split
// with the next finer one. Same input and config always produce identical
// output.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter validates the configuration and creates a splitter with the
// default separator hierarchy.
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	return NewSplitterWithSeparators(chunkSize, chunkOverlap, DefaultSeparators)
}

// NewSplitterWithSeparators creates a splitter with a custom separator list,
// ordered coarse to fine. An empty-string separator means hard character cuts.
func NewSplitterWithSeparators(chunkSize, chunkOverlap int, separators []string) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w",
			chunkSize, domain.ErrInvalidChunkConfig)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d: %w",
			chunkOverlap, domain.ErrInvalidChunkConfig)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d: %w",
			chunkOverlap, chunkSize, domain.ErrInvalidChunkConfig)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   separators,
	}, nil
}

// Split returns the chunk texts of text in original order. Empty or
// whitespace-only input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.splitText(text, s.separators)
}

// SplitDocument chunks text and attaches document identity to each segment.
func (s *Splitter) SplitDocument(text, documentID, source string) []domain.Chunk {
	parts := s.Split(text)
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, domain.Chunk{
			Text:       p,
			DocumentID: documentID,
			Source:     source,
			Position:   i,
		})
	}
	return chunks
}

func (s *Splitter) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	rest := []string{}
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	if separator == "" {
		return s.cut(text)
	}

	pieces := strings.SplitAfter(text, separator)

	var chunks []string
	var fitting []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if utf8.RuneCountInString(piece) <= s.chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		// Flush what fits, then descend into the oversized piece.
		chunks = append(chunks, s.merge(fitting)...)
		fitting = nil
		if len(rest) == 0 {
			// No finer separator left: an indivisible token is emitted as-is.
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.splitText(piece, rest)...)
		}
	}
	return append(chunks, s.merge(fitting)...)
}

// merge greedily packs consecutive pieces into chunks of at most chunkSize
// runes, carrying up to chunkOverlap trailing runes into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	if len(pieces) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, piece := range pieces {
		pieceLen := utf8.RuneCountInString(piece)
		if currentLen+pieceLen > s.chunkSize && currentLen > 0 {
			chunks = append(chunks, strings.Join(current, ""))
			// Keep a tail of pieces within the overlap budget.
			for currentLen > s.chunkOverlap ||
				(currentLen+pieceLen > s.chunkSize && currentLen > 0) {
				currentLen -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		currentLen += pieceLen
	}

	if currentLen > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// cut slices text into chunkSize-rune windows advancing by chunkSize-overlap.
func (s *Splitter) cut(text string) []string {
	runes := []rune(text)
	step := s.chunkSize - s.chunkOverlap

	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+s.chunkSize, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
