package ingest

import (
	"context"
	"fmt"

	"github.com/docchat/docchat/internal/chunker"
)

// BatchEmbedder embeds a slice of chunk texts, preserving length and order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Output is the result of a full ingestion run for one document.
type Output struct {
	Chunks   []string
	Stored   int
	Warnings []string
}

// Pipeline runs segmentation, embedding, and indexing for one document.
// Segmentation and embedding dominate the cost, so callers on a request
// path should go through the job worker instead of calling Ingest inline.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder BatchEmbedder
	indexer  *Indexer
}

// NewPipeline wires the three ingestion stages together.
func NewPipeline(ch *chunker.Chunker, embedder BatchEmbedder, indexer *Indexer) *Pipeline {
	return &Pipeline{chunker: ch, embedder: embedder, indexer: indexer}
}

// Ingest segments text with the given strategy, embeds the chunks, and
// stores them under filename. Empty documents are a no-op.
func (p *Pipeline) Ingest(ctx context.Context, text, filename string, strategy chunker.Strategy) (Output, error) {
	chunks, err := p.chunker.Split(ctx, text, strategy)
	if err != nil {
		return Output{}, fmt.Errorf("chunking %s: %w", filename, err)
	}
	if len(chunks) == 0 {
		return Output{}, nil
	}

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return Output{}, fmt.Errorf("embedding chunks of %s: %w", filename, err)
	}

	res, err := p.indexer.Store(ctx, chunks, vectors, filename, string(strategy))
	if err != nil {
		return Output{Chunks: chunks, Stored: res.Stored, Warnings: res.Warnings}, err
	}

	return Output{Chunks: chunks, Stored: res.Stored, Warnings: res.Warnings}, nil
}
