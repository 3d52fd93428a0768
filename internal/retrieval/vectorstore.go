// Package retrieval provides vector storage backends and the retriever that
// turns a query into ranked document chunks plus a combined context string.
package retrieval

import (
	"context"
	"errors"
	"time"
)

// MaxBatchSize is the largest batch a single Upsert call may carry. This is
// a hard contract of the underlying vector services (Pinecone-style stores
// document a 100-vector upsert limit), not a tuning knob.
const MaxBatchSize = 100

// ErrBatchTooLarge is returned when a caller violates the batch-size contract.
var ErrBatchTooLarge = errors.New("upsert batch exceeds store limit")

// VectorStore is the interface for vector storage and similarity search
// backends. The default implementation uses SQLite with brute-force cosine
// similarity; a Qdrant-backed implementation is available for deployments
// with an external vector service.
type VectorStore interface {
	// Upsert inserts or replaces records. Batches larger than MaxBatchSize
	// are rejected with ErrBatchTooLarge. Upserts are not transactional
	// across calls: records from earlier batches stay committed when a
	// later batch fails.
	Upsert(ctx context.Context, records []Record) error

	// Query returns the topK records most similar to the vector under the
	// cosine metric, best first, with metadata attached.
	Query(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error)

	// DeleteByFilename removes all records belonging to a source document
	// and reports how many were deleted.
	DeleteByFilename(ctx context.Context, filename string) (int, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// Record is one indexed chunk: its vector plus the retrieval metadata.
type Record struct {
	ID           string
	Text         string // truncated to the metadata limit at indexing time
	Filename     string
	ChunkIndex   int
	Strategy     string
	ChunkSize    int
	EmbeddingDim int
	Embedding    []float32
	CreatedAt    time.Time
}

// ScoredRecord is a Record with a similarity score attached. Higher is more
// relevant; the range is defined by the cosine metric.
type ScoredRecord struct {
	Record
	Score float32
}
