package vector

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docchat/internal/db"
	"github.com/kailas-cloud/docchat/internal/domain"
)

// Hash field names. __content and __vector follow the index schema; the rest
// are retrieval metadata. __vector_score is computed by FT.SEARCH and must be
// in RETURN or hits come back unscored.
const (
	fieldContent     = "__content"
	fieldVector      = "__vector"
	fieldVectorScore = "__vector_score"
	fieldDocumentID  = "document_id"
	fieldSource      = "source"
	fieldPosition    = "position"
)

// buildIndex describes the chunk index: one TAG field for document scoping
// and an HNSW/COSINE vector field.
func buildIndex(vectorDim int, hnsw HNSWConfig) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     IndexName,
		Prefixes: []string{chunkPrefix},
		Fields: []db.IndexField{
			{
				Name: fieldDocumentID,
				Type: db.IndexFieldTag,
			},
			{
				Name: fieldSource,
				Type: db.IndexFieldTag,
			},
			{
				Name: fieldPosition,
				Type: db.IndexFieldNumeric,
			},
			{
				Name:              fieldVector,
				Alias:             "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         vectorDim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           hnsw.M,
				VectorEFConstruct: hnsw.EFConstruct,
			},
		},
	}
}

// buildHashFields converts a chunk plus its embedding into a flat map for HSET.
func buildHashFields(c domain.Chunk, vector []float32) map[string]string {
	return map[string]string{
		fieldContent:    c.Text,
		fieldVector:     vectorToBytes(vector),
		fieldDocumentID: c.DocumentID,
		fieldSource:     c.Source,
		fieldPosition:   strconv.Itoa(c.Position),
	}
}

// parseEntry converts a search hit back into a domain record.
func parseEntry(entry db.SearchEntry) domain.VectorRecord {
	rec := domain.VectorRecord{
		ID: strings.TrimPrefix(entry.Key, chunkPrefix),
	}
	for k, v := range entry.Fields {
		switch k {
		case fieldContent:
			rec.Content = v
		case fieldVector:
			rec.Embedding = bytesToVector(v)
		case fieldDocumentID:
			rec.DocumentID = v
		case fieldSource:
			rec.Source = v
		case fieldPosition:
			if n, err := strconv.Atoi(v); err == nil {
				rec.Position = n
			}
		}
	}
	return rec
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
