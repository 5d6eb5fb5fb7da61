// Package ingest drives a document through the pipeline:
// fetch, extract, chunk, embed, store.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/logger"
	"github.com/kailas-cloud/docchat/internal/metrics"
)

// Report summarizes a completed ingestion.
type Report struct {
	ChunkCount        int
	FirstChunkPreview string
}

// Service runs the ingestion pipeline for one document at a time.
// A failing document ends in the failed state with its error recorded;
// the pipeline itself never brings the process down.
type Service struct {
	meta     MetadataStore
	blobs    BlobStore
	extract  Extractor
	splitter Splitter
	embedder Embedder
	vectors  VectorStore
}

// New creates an ingestion service.
func New(
	meta MetadataStore,
	blobs BlobStore,
	extract Extractor,
	splitter Splitter,
	embedder Embedder,
	vectors VectorStore,
) *Service {
	return &Service{
		meta:     meta,
		blobs:    blobs,
		extract:  extract,
		splitter: splitter,
		embedder: embedder,
		vectors:  vectors,
	}
}

// Ingest processes one document end to end. Prior vectors of the document
// are replaced, never duplicated, so re-ingestion is safe.
func (s *Service) Ingest(ctx context.Context, documentID string) (Report, error) {
	log := logger.FromContext(ctx).With(zap.String("document_id", documentID))
	start := time.Now()

	doc, err := s.meta.Get(ctx, documentID)
	if err != nil {
		return Report{}, fmt.Errorf("get document: %w", err)
	}

	if err := s.meta.SetStatus(ctx, documentID, domain.StatusProcessing); err != nil {
		return Report{}, fmt.Errorf("mark processing: %w", err)
	}

	report, err := s.run(ctx, doc)
	if err != nil {
		log.Error("Ingestion failed", zap.Error(err))
		metrics.IngestDocumentsTotal.WithLabelValues("failed").Inc()
		if ferr := s.meta.SetFailed(ctx, documentID, err.Error()); ferr != nil {
			log.Error("Failed to record ingestion failure", zap.Error(ferr))
		}
		return Report{}, err
	}

	if err := s.meta.SetStatus(ctx, documentID, domain.StatusDone); err != nil {
		return Report{}, fmt.Errorf("mark done: %w", err)
	}

	metrics.IngestDocumentsTotal.WithLabelValues("done").Inc()
	metrics.IngestChunksTotal.Add(float64(report.ChunkCount))
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	log.Info("Document ingested",
		zap.Int("chunks", report.ChunkCount),
		zap.Duration("duration", time.Since(start)))

	return report, nil
}

// run executes the pipeline steps after the document is marked processing.
func (s *Service) run(ctx context.Context, doc domain.Document) (Report, error) {
	content, err := s.blobs.Load(doc.ID)
	if err != nil {
		return Report{}, err
	}

	text, err := s.extract.Extract(content, doc.FileName)
	if err != nil {
		return Report{}, err
	}

	if strings.TrimSpace(text) == "" {
		// nothing to index; still a successful ingestion
		if _, err := s.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
			return Report{}, fmt.Errorf("clear previous vectors: %w", err)
		}
		return Report{}, nil
	}

	chunks := s.splitter.SplitDocument(text, doc.ID, doc.FileName)
	if len(chunks) == 0 {
		return Report{}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Report{}, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}

	// replace before insert so a re-ingested document never duplicates
	if _, err := s.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		return Report{}, fmt.Errorf("delete previous vectors: %w", err)
	}
	if _, err := s.vectors.AddVectors(ctx, chunks, vectors); err != nil {
		return Report{}, fmt.Errorf("store vectors: %w", err)
	}

	return Report{
		ChunkCount:        len(chunks),
		FirstChunkPreview: domain.Truncate(chunks[0].Text, domain.SourcePreviewLen),
	}, nil
}
