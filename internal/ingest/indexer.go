// Package ingest turns raw documents into indexed vector records: it runs
// segmentation, embedding, and batched upserts, and processes queued
// ingestion jobs on a background worker.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/docchat/docchat/internal/retrieval"
)

// maxMetadataText caps the chunk text stored in record metadata.
const maxMetadataText = 5000

// StoreResult reports an indexing outcome. Warnings carry best-effort
// failures (the metadata row) that did not affect the vector write.
type StoreResult struct {
	Stored   int
	Warnings []string
}

// MetadataWriter records the ingestion-metadata row for a stored document.
// The write is best-effort: Indexer.Store logs failures and reports them as
// warnings instead of rolling back the vector upserts.
type MetadataWriter interface {
	RecordIngestion(ctx context.Context, filename string, chunks []string, strategy string) error
}

// Indexer upserts (chunk, vector, metadata) tuples into a vector store in
// bounded batches and records ingestion metadata as a secondary write.
type Indexer struct {
	store  retrieval.VectorStore
	meta   MetadataWriter // optional
	logger *slog.Logger
}

// NewIndexer creates an Indexer. meta may be nil to skip the metadata row.
func NewIndexer(store retrieval.VectorStore, meta MetadataWriter) *Indexer {
	return &Indexer{store: store, meta: meta, logger: slog.Default()}
}

// RecordID derives the deterministic id for a chunk from its document,
// position, and a content digest. Re-ingesting the same document produces
// the same ids, so upserts replace stale records instead of duplicating
// them, and chunks of different documents can never collide.
func RecordID(filename string, index int, chunk string) string {
	sum := sha256.Sum256([]byte(chunk))
	return fmt.Sprintf("%s:%d:%s", filename, index, hex.EncodeToString(sum[:])[:12])
}

// Store indexes positionally-paired chunks and vectors for one document.
// Batches are capped at the store's documented upsert limit; a failure in a
// later batch leaves earlier batches committed (at-least-once per batch),
// which the deterministic ids make harmless on retry.
func (ix *Indexer) Store(ctx context.Context, chunks []string, vectors [][]float32, filename, strategy string) (StoreResult, error) {
	if len(chunks) != len(vectors) {
		return StoreResult{}, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return StoreResult{}, nil
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = retrieval.Record{
			ID:           RecordID(filename, i, chunk),
			Text:         truncate(chunk, maxMetadataText),
			Filename:     filename,
			ChunkIndex:   i,
			Strategy:     strategy,
			ChunkSize:    len([]rune(chunk)),
			EmbeddingDim: len(vectors[i]),
			Embedding:    vectors[i],
			CreatedAt:    now,
		}
	}

	var result StoreResult
	for start := 0; start < len(records); start += retrieval.MaxBatchSize {
		end := min(start+retrieval.MaxBatchSize, len(records))
		batch := records[start:end]
		if err := ix.store.Upsert(ctx, batch); err != nil {
			return result, fmt.Errorf("upserting batch %d: %w", start/retrieval.MaxBatchSize+1, err)
		}
		result.Stored += len(batch)
		ix.logger.Debug("uploaded batch",
			"batch", start/retrieval.MaxBatchSize+1,
			"vectors", len(batch),
			"filename", filename,
		)
	}

	if ix.meta != nil {
		if err := ix.meta.RecordIngestion(ctx, filename, chunks, strategy); err != nil {
			ix.logger.Warn("ingestion metadata write failed", "filename", filename, "error", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("metadata write failed: %v", err))
		}
	}

	ix.logger.Info("stored vectors", "filename", filename, "count", result.Stored, "strategy", strategy)
	return result, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
