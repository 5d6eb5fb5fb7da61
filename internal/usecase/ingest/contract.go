package ingest

import (
	"context"

	"github.com/kailas-cloud/docchat/internal/domain"
)

// MetadataStore drives the document lifecycle state machine.
type MetadataStore interface {
	Get(ctx context.Context, id string) (domain.Document, error)
	SetStatus(ctx context.Context, id string, next domain.Status) error
	SetFailed(ctx context.Context, id, msg string) error
}

// BlobStore reads raw uploaded bytes.
type BlobStore interface {
	Load(documentID string) ([]byte, error)
}

// Extractor turns raw bytes into plain text by file format.
type Extractor interface {
	Extract(content []byte, fileName string) (string, error)
}

// Splitter cuts extracted text into chunks with document metadata attached.
type Splitter interface {
	SplitDocument(text, documentID, source string) []domain.Chunk
}

// VectorStore persists chunk embeddings.
type VectorStore interface {
	AddVectors(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) ([]string, error)
	DeleteByDocument(ctx context.Context, documentID string) (int, error)
}

// Embedder vectorizes chunk texts.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
