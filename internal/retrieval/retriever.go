package retrieval

import (
	"context"
	"fmt"
	"strings"
)

const previewLength = 200

// Hit is one retrieved chunk with its similarity score and provenance.
type Hit struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Strategy   string  `json:"strategy"`
	ChunkSize  int     `json:"chunk_size"`
	Preview    string  `json:"preview"`
}

// SearchResult bundles the ranked hits with the combined context string
// handed to the language model.
type SearchResult struct {
	Hits    []Hit
	Context string
}

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever combines query embedding and vector search. It must share its
// embedder with the ingestion path so both sides live in the same embedding
// space.
type Retriever struct {
	embedder QueryEmbedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given embedder and store.
func NewRetriever(embedder QueryEmbedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Search embeds the query, fetches the topK nearest records, and assembles
// the combined context. Hits keep the store's rank order; the context joins
// all non-empty hit texts with blank lines.
func (r *Retriever) Search(ctx context.Context, query string, topK int) (SearchResult, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return SearchResult{}, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := r.store.Query(ctx, vec, topK)
	if err != nil {
		return SearchResult{}, fmt.Errorf("querying vector store: %w", err)
	}

	hits := make([]Hit, 0, len(scored))
	texts := make([]string, 0, len(scored))
	for _, s := range scored {
		hits = append(hits, Hit{
			ID:         s.ID,
			Score:      s.Score,
			Text:       s.Text,
			Filename:   s.Filename,
			ChunkIndex: s.ChunkIndex,
			Strategy:   s.Strategy,
			ChunkSize:  s.ChunkSize,
			Preview:    preview(s.Text),
		})
		if s.Text != "" {
			texts = append(texts, s.Text)
		}
	}

	return SearchResult{
		Hits:    hits,
		Context: strings.Join(texts, "\n\n"),
	}, nil
}

// preview returns the first 200 characters of text, with an ellipsis when
// truncated. Used for lightweight listings that skip the full chunk.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
