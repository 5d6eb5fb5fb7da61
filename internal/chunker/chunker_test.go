package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kailas-cloud/docchat/internal/domain"
)

func TestNewSplitter_OverlapNotSmaller_ReturnsError(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
		{"zero size", 0, 0},
		{"negative overlap", 100, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSplitter(tc.size, tc.overlap)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrInvalidChunkConfig) {
				t.Errorf("expected ErrInvalidChunkConfig, got %v", err)
			}
		})
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	s, err := NewSplitter(100, 20)
	if err != nil {
		t.Fatalf("NewSplitter: %v", err)
	}
	if got := s.Split(""); len(got) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(got))
	}
	if got := s.Split("   \n\n  "); len(got) != 0 {
		t.Errorf("expected no chunks for whitespace input, got %d", len(got))
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s, _ := NewSplitter(100, 20)
	chunks := s.Split("hello world")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "hello world" {
		t.Errorf("expected text unchanged, got %q", chunks[0])
	}
}

func TestSplit_RespectsChunkSize(t *testing.T) {
	s, _ := NewSplitter(50, 10)

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 50 {
			t.Errorf("chunk %d has %d runes, exceeds chunk size 50", i, n)
		}
	}
}

func TestSplit_PreservesOrderAndContent(t *testing.T) {
	s, _ := NewSplitter(40, 0)

	text := "first paragraph here.\n\nsecond paragraph here.\n\nthird paragraph here."
	chunks := s.Split(text)

	// With zero overlap the concatenation reconstructs the original text.
	if got := strings.Join(chunks, ""); got != text {
		t.Errorf("concatenated chunks differ from input:\n got %q\nwant %q", got, text)
	}
}

func TestSplit_OversizedParagraphSplitAtLines(t *testing.T) {
	s, _ := NewSplitter(30, 0)

	// One paragraph far beyond the chunk size, made of short lines.
	text := strings.TrimSpace(strings.Repeat("a line of text here\n", 6))
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected the paragraph to be split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 30 {
			t.Errorf("chunk %d has %d runes, exceeds chunk size", i, n)
		}
	}
	if got := strings.Join(chunks, ""); got != text {
		t.Errorf("concatenated chunks differ from input:\n got %q\nwant %q", got, text)
	}
}

func TestSplit_OverlapCarriedBetweenChunks(t *testing.T) {
	s, _ := NewSplitter(20, 8)

	text := "aaaa bbbb cccc dddd eeee ffff gggg hhhh"
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		// Each chunk starts with content carried over from its predecessor.
		head := chunks[i][:5]
		if !strings.Contains(chunks[i-1], head) {
			t.Errorf("chunk %d head %q not present in predecessor %q", i, head, chunks[i-1])
		}
	}
	// All input content is present in order.
	joined := strings.Join(chunks, "")
	for _, word := range strings.Fields(text) {
		if !strings.Contains(joined, word) {
			t.Errorf("word %q lost during splitting", word)
		}
	}
}

func TestSplit_HardCutForUnbrokenText(t *testing.T) {
	s, _ := NewSplitter(10, 2)

	text := strings.Repeat("x", 35)
	chunks := s.Split(text)
	if len(chunks) < 4 {
		t.Fatalf("expected at least 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 10 {
			t.Errorf("chunk %d has %d runes, exceeds chunk size", i, n)
		}
	}
}

func TestSplit_IndivisibleTokenEmittedAsIs(t *testing.T) {
	// No character-level separator: a single long token cannot be divided.
	s, err := NewSplitterWithSeparators(10, 0, []string{"\n\n", "\n", " "})
	if err != nil {
		t.Fatalf("NewSplitterWithSeparators: %v", err)
	}

	long := strings.Repeat("y", 25)
	chunks := s.Split("short " + long + " tail")

	found := false
	for _, c := range chunks {
		if strings.Contains(c, long) {
			found = true
		}
	}
	if !found {
		t.Errorf("indivisible token was not emitted intact: %q", chunks)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	s, _ := NewSplitter(64, 16)

	text := "Refund policy.\n\nCustomers may request a refund within 30 days of purchase. " +
		"Refunds are processed to the original payment method.\n\nContact support for help."

	first := s.Split(text)
	for run := 0; run < 5; run++ {
		again := s.Split(text)
		if len(again) != len(first) {
			t.Fatalf("run %d: chunk count changed: %d vs %d", run, len(again), len(first))
		}
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("run %d: chunk %d differs:\n got %q\nwant %q", run, i, again[i], first[i])
			}
		}
	}
}

func TestSplit_Unicode(t *testing.T) {
	s, _ := NewSplitter(10, 0)

	text := strings.Repeat("日本語テキスト ", 8)
	chunks := s.Split(text)
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c)
		}
		if n := utf8.RuneCountInString(c); n > 10 {
			t.Errorf("chunk %d has %d runes, exceeds chunk size", i, n)
		}
	}
}

func TestSplitDocument_AttachesMetadata(t *testing.T) {
	s, _ := NewSplitter(20, 0)

	chunks := s.SplitDocument("alpha beta gamma delta epsilon zeta", "doc-1", "handbook.pdf")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.DocumentID != "doc-1" {
			t.Errorf("chunk %d: wrong document ID %q", i, c.DocumentID)
		}
		if c.Source != "handbook.pdf" {
			t.Errorf("chunk %d: wrong source %q", i, c.Source)
		}
		if c.Position != i {
			t.Errorf("chunk %d: wrong position %d", i, c.Position)
		}
		if c.Text == "" {
			t.Errorf("chunk %d: empty text", i)
		}
	}
}
