package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Backend is the single-text embedding capability the Embedder batches over.
type Backend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder wraps a Backend with batch support. The same Embedder instance
// must be used for ingestion and querying so the embedding spaces match.
type Embedder struct {
	backend Backend
}

// NewEmbedder creates an Embedder over the given backend.
func NewEmbedder(backend Backend) *Embedder {
	return &Embedder{backend: backend}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.backend.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently,
// preserving input order. Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the service.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.backend.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
