package domain

// Chunk is a segment of extracted document text. Chunks live in memory
// between extraction and embedding; they are persisted only as part of a
// VectorRecord.
type Chunk struct {
	Text       string
	DocumentID string
	Source     string
	Position   int
}

// VectorRecord is one stored (embedding, content, metadata) row.
// Records are append-only and never mutated after insertion.
type VectorRecord struct {
	ID         string
	Embedding  []float32
	Content    string
	DocumentID string
	Source     string
	Position   int
}

// ScoredRecord pairs a retrieved record with its similarity score in [0,1].
type ScoredRecord struct {
	Record VectorRecord
	Score  float64
}

// SourceRef is a citation returned with an answer.
type SourceRef struct {
	Source  string
	Preview string
}

// Answer is the result of a chat query: the model's text plus the distinct
// sources of the retrieved context, in retrieval order.
type Answer struct {
	Text    string
	Sources []SourceRef
}

// SourcePreviewLen is the character budget for citation previews.
const SourcePreviewLen = 200

// Truncate shortens s to at most n bytes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune boundary so the cut never splits a UTF-8 sequence.
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n] + "…"
}
