// Package vector persists chunk embeddings as Redis hashes behind an
// FT vector index and serves KNN retrieval over them.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/kailas-cloud/docchat/internal/db"
	"github.com/kailas-cloud/docchat/internal/domain"
)

// IndexName is the FT index covering all chunk records.
const IndexName = domain.KeyPrefix + "chunk:idx"

const chunkPrefix = domain.KeyPrefix + "chunk:"

// store is the consumer interface for vector records (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelMulti(ctx context.Context, keys []string) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig holds HNSW index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the vector store used by the ingestion and chat usecases.
type Repo struct {
	store     store
	vectorDim int
	hnsw      HNSWConfig
	newID     func() string
}

// New creates a vector repository. vectorDim must match the embedding
// provider's output dimensionality.
func New(s store, vectorDim int, hnsw HNSWConfig) *Repo {
	return &Repo{
		store:     s,
		vectorDim: vectorDim,
		hnsw:      hnsw,
		newID:     uuid.NewString,
	}
}

// EnsureIndex creates the chunk index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", IndexName, err)
	}
	if exists {
		return nil
	}

	if err := r.store.CreateIndex(ctx, buildIndex(r.vectorDim, r.hnsw)); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", IndexName, err)
	}
	return nil
}

// RecreateIndex drops and rebuilds the chunk index. Existing records are
// re-indexed by Redis in the background. Use after changing the embedding
// dimensionality or HNSW parameters.
func (r *Repo) RecreateIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, IndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", IndexName, err)
	}
	if err := r.store.CreateIndex(ctx, buildIndex(r.vectorDim, r.hnsw)); err != nil {
		return fmt.Errorf("create index %s: %w", IndexName, err)
	}
	return nil
}

// AddVectors stores one record per chunk with its embedding and returns the
// generated record IDs. chunks and vectors must align one-to-one.
func (r *Repo) AddVectors(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) ([]string, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%d chunks vs %d vectors: %w",
			len(chunks), len(vectors), domain.ErrLengthMismatch)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	for i, v := range vectors {
		if len(v) != r.vectorDim {
			return nil, fmt.Errorf("vector %d has dim %d, index expects %d: %w",
				i, len(v), r.vectorDim, domain.ErrVectorDimMismatch)
		}
	}

	if err := r.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, len(chunks))
	items := make([]db.HashSetItem, len(chunks))
	for i, c := range chunks {
		ids[i] = r.newID()
		items[i] = db.HashSetItem{
			Key:    chunkKey(ids[i]),
			Fields: buildHashFields(c, vectors[i]),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return nil, fmt.Errorf("store %d records: %w", len(items), err)
	}
	return ids, nil
}

// SimilaritySearch returns the k records nearest to the query vector,
// highest similarity first. k <= 0 returns an empty result.
func (r *Repo) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.ScoredRecord, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != r.vectorDim {
		return nil, fmt.Errorf("query vector has dim %d, index expects %d: %w",
			len(vector), r.vectorDim, domain.ErrVectorDimMismatch)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldContent, fieldVectorScore, fieldDocumentID, fieldSource, fieldPosition},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			// nothing ingested yet
			return nil, nil
		}
		return nil, fmt.Errorf("knn search: %w", err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	records := make([]domain.ScoredRecord, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		records = append(records, domain.ScoredRecord{
			Record: parseEntry(entry),
			Score:  entry.Score,
		})
	}

	// Redis returns hits in distance order already; re-sort with stable
	// tie-breaking so equal scores come back in the same order every call.
	sort.Slice(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		if records[i].Record.Position != records[j].Record.Position {
			return records[i].Record.Position < records[j].Record.Position
		}
		return records[i].Record.ID < records[j].Record.ID
	})

	return records, nil
}

// DeleteByDocument removes every record of a document and returns how many
// were deleted. Re-ingestion calls this first so a document is replaced,
// never duplicated.
func (r *Repo) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	query := documentQuery(documentID)

	var keys []string
	offset := 0
	const page = 500
	for {
		sr, err := r.store.SearchList(ctx, IndexName, query, offset, page, nil)
		if err != nil {
			if errors.Is(err, db.ErrIndexNotFound) {
				return 0, nil
			}
			return 0, fmt.Errorf("list records of %s: %w", documentID, err)
		}
		if sr == nil || len(sr.Entries) == 0 {
			break
		}
		for _, entry := range sr.Entries {
			keys = append(keys, entry.Key)
		}
		if len(sr.Entries) < page {
			break
		}
		offset += page
	}

	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := r.store.DelMulti(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("delete %d records of %s: %w", len(keys), documentID, err)
	}
	return deleted, nil
}

// CountByDocument returns the number of stored records for a document.
func (r *Repo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName, documentQuery(documentID))
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("count records of %s: %w", documentID, err)
	}
	return n, nil
}

func chunkKey(id string) string {
	return chunkPrefix + id
}

// documentQuery builds the TAG filter for all records of one document.
// UUIDs contain dashes, which TAG syntax requires escaping.
func documentQuery(documentID string) string {
	escaped := make([]byte, 0, len(documentID)*2)
	for i := 0; i < len(documentID); i++ {
		if documentID[i] == '-' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, documentID[i])
	}
	return fmt.Sprintf("@%s:{%s}", fieldDocumentID, escaped)
}
