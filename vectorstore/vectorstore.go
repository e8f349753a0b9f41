// Package vectorstore adapts the retriever's index/query needs to one of
// several vector database backends (spec §4.5, §6.4's vector_backend enum).
package vectorstore

import "context"

// Chunk is one unit upserted to or returned from a vector backend, carrying
// the filterable metadata spec §3.1's RetrievalChunk entity names.
type Chunk struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

// ScoredChunk is one query result.
type ScoredChunk struct {
	Chunk
	Score float64
}

// Filter narrows Query/Delete to vectors matching every key/value pair.
type Filter map[string]string

// Store is the uniform vector backend contract: upsert, similarity query,
// and filtered delete, each backend-agnostic so the retriever never knows
// which of chroma/qdrant/pinecone is live.
type Store interface {
	// EnsureCollection verifies the backend's collection exists with the
	// given vector dimension, implementing spec §4.5's dimension-safety
	// check: on a dimension mismatch the collection is deleted and
	// recreated (data loss is accepted in exchange for never silently
	// inserting wrong-sized vectors).
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or overwrites the given chunks by ID.
	Upsert(ctx context.Context, chunks []Chunk) error

	// Query returns the topK nearest chunks to embedding, restricted to
	// vectors whose metadata matches every key in filter.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]ScoredChunk, error)

	// Delete removes every vector matching filter. Deletion is idempotent:
	// deleting an empty match set is not an error.
	Delete(ctx context.Context, filter Filter) error
}

// ErrDimensionMismatch is returned by implementations that choose to
// surface the mismatch rather than silently recreate the collection
// (EnsureCollection recreates by default; this is available for callers
// that want to detect the event instead, e.g. to log it).
var ErrDimensionMismatch = dimensionMismatchError{}

type dimensionMismatchError struct{}

func (dimensionMismatchError) Error() string { return "vector dimension mismatch" }
