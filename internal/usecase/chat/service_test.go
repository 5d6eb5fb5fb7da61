package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/docchat/internal/domain"
)

const cannotAnswer = "I cannot answer this question from the available documents."

// mockEmbedder implements Embedder for tests.
type mockEmbedder struct {
	vector []float32
	err    error
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

// mockRetriever implements Retriever for tests.
type mockRetriever struct {
	records []domain.ScoredRecord
	err     error
	gotK    int
}

func (m *mockRetriever) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.ScoredRecord, error) {
	m.gotK = k
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

// mockGenerator implements Generator for tests.
type mockGenerator struct {
	answer    string
	err       error
	gotPrompt string
	calls     int
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.gotPrompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func scored(source, content string, score float64) domain.ScoredRecord {
	return domain.ScoredRecord{
		Record: domain.VectorRecord{Source: source, Content: content},
		Score:  score,
	}
}

func TestAnswer(t *testing.T) {
	ret := &mockRetriever{records: []domain.ScoredRecord{
		scored("manual.pdf", "Chunks are embedded in batches.", 0.92),
		scored("notes.txt", "Answers cite their sources.", 0.85),
	}}
	gen := &mockGenerator{answer: "Batches, per the manual."}
	s := New(&mockEmbedder{vector: []float32{1, 0}}, ret, gen, 4, cannotAnswer)

	answer, err := s.Answer(context.Background(), "how are chunks embedded?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "Batches, per the manual." {
		t.Errorf("answer text = %q", answer.Text)
	}
	if ret.gotK != 4 {
		t.Errorf("retriever k = %d, want 4", ret.gotK)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("sources = %v, want 2", answer.Sources)
	}
	if answer.Sources[0].Source != "manual.pdf" || answer.Sources[1].Source != "notes.txt" {
		t.Errorf("source order = %v, want retrieval order", answer.Sources)
	}
}

func TestAnswer_PromptContainsContextAndQuery(t *testing.T) {
	ret := &mockRetriever{records: []domain.ScoredRecord{
		scored("a.txt", "first chunk", 0.9),
		scored("b.txt", "second chunk", 0.8),
	}}
	gen := &mockGenerator{answer: "ok"}
	s := New(&mockEmbedder{vector: []float32{1}}, ret, gen, 2, cannotAnswer)

	if _, err := s.Answer(context.Background(), "the question"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	for _, want := range []string{"first chunk", "second chunk", "the question", cannotAnswer} {
		if !strings.Contains(gen.gotPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, gen.gotPrompt)
		}
	}
	if strings.Index(gen.gotPrompt, "first chunk") > strings.Index(gen.gotPrompt, "second chunk") {
		t.Error("context chunks are not in retrieval order")
	}
}

func TestAnswer_NoResultsSkipsGenerator(t *testing.T) {
	gen := &mockGenerator{answer: "should not be used"}
	s := New(&mockEmbedder{vector: []float32{1}}, &mockRetriever{}, gen, 4, cannotAnswer)

	answer, err := s.Answer(context.Background(), "anything ingested?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != cannotAnswer {
		t.Errorf("answer text = %q, want cannot-answer message", answer.Text)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("sources = %v, want none", answer.Sources)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}
}

func TestAnswer_DistinctSources(t *testing.T) {
	ret := &mockRetriever{records: []domain.ScoredRecord{
		scored("manual.pdf", "chunk one", 0.9),
		scored("manual.pdf", "chunk two", 0.8),
		scored("notes.txt", "chunk three", 0.7),
	}}
	s := New(&mockEmbedder{vector: []float32{1}}, ret, &mockGenerator{answer: "ok"}, 3, cannotAnswer)

	answer, err := s.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("sources = %v, want 2 distinct", answer.Sources)
	}
	if answer.Sources[0].Preview != "chunk one" {
		t.Errorf("preview = %q, want first chunk of the source", answer.Sources[0].Preview)
	}
}

func TestAnswer_LongPreviewTruncated(t *testing.T) {
	long := strings.Repeat("x", domain.SourcePreviewLen+50)
	ret := &mockRetriever{records: []domain.ScoredRecord{scored("big.txt", long, 0.9)}}
	s := New(&mockEmbedder{vector: []float32{1}}, ret, &mockGenerator{answer: "ok"}, 1, cannotAnswer)

	answer, err := s.Answer(context.Background(), "q")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	preview := answer.Sources[0].Preview
	if !strings.HasSuffix(preview, "…") {
		t.Errorf("preview = %q, want ellipsis suffix", preview)
	}
	if len(preview) > domain.SourcePreviewLen+len("…") {
		t.Errorf("preview length = %d, want <= %d", len(preview), domain.SourcePreviewLen+len("…"))
	}
}

func TestAnswer_EmptyQuery(t *testing.T) {
	s := New(&mockEmbedder{vector: []float32{1}}, &mockRetriever{}, &mockGenerator{}, 4, cannotAnswer)

	if _, err := s.Answer(context.Background(), "   "); err == nil {
		t.Error("Answer() error = nil, want error for empty query")
	}
}

func TestAnswer_EmbedFailure(t *testing.T) {
	s := New(&mockEmbedder{err: domain.ErrEmbeddingProviderError},
		&mockRetriever{}, &mockGenerator{}, 4, cannotAnswer)

	_, err := s.Answer(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("Answer() error = %v, want ErrEmbeddingProviderError", err)
	}
}

func TestAnswer_GenerationFailure(t *testing.T) {
	ret := &mockRetriever{records: []domain.ScoredRecord{scored("a.txt", "chunk", 0.9)}}
	s := New(&mockEmbedder{vector: []float32{1}}, ret,
		&mockGenerator{err: domain.ErrGenerationFailed}, 4, cannotAnswer)

	_, err := s.Answer(context.Background(), "q")
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Errorf("Answer() error = %v, want ErrGenerationFailed", err)
	}
}
