// Package chunker splits raw document text into ordered chunks using a
// selectable strategy: fixed-size character windows or semantic grouping of
// sentences by embedding similarity.
package chunker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Strategy selects how a document is segmented.
type Strategy string

const (
	// FixedSize partitions text into contiguous windows of ChunkSize characters.
	FixedSize Strategy = "fixed_size"
	// Semantic groups consecutive sentences whose embeddings stay above Threshold.
	Semantic Strategy = "semantic"
)

// ErrUnknownStrategy is returned for strategy names other than the two above.
// There is deliberately no silent fallback.
var ErrUnknownStrategy = errors.New("unknown chunking strategy")

const (
	// DefaultChunkSize is the fixed-size window width in characters.
	DefaultChunkSize = 500
	// DefaultThreshold is the cosine similarity cut for semantic grouping.
	DefaultThreshold = 0.75
)

// SentenceEmbedder provides embeddings for the semantic strategy. The call is
// expensive; the chunker makes exactly one batch call per document.
type SentenceEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker segments documents. Safe for concurrent use.
type Chunker struct {
	embedder  SentenceEmbedder
	chunkSize int
	threshold float64
}

// New creates a Chunker. chunkSize <= 0 and threshold <= 0 fall back to the
// defaults. The embedder is only required for the semantic strategy.
func New(embedder SentenceEmbedder, chunkSize int, threshold float64) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Chunker{embedder: embedder, chunkSize: chunkSize, threshold: threshold}
}

// Split segments text with the given strategy. Chunk order follows document
// order; whitespace-only input yields no chunks.
func (c *Chunker) Split(ctx context.Context, text string, strategy Strategy) ([]string, error) {
	switch strategy {
	case FixedSize:
		return SplitFixedSize(text, c.chunkSize), nil
	case Semantic:
		return c.splitSemantic(ctx, text)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// SplitFixedSize partitions text into non-overlapping windows of chunkSize
// characters. All chunks except the last have exactly chunkSize characters,
// and their concatenation reproduces the input.
func SplitFixedSize(text string, chunkSize int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+chunkSize-1)/chunkSize)
	for i := 0; i < len(runes); i += chunkSize {
		end := min(i+chunkSize, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// splitSemantic embeds every sentence once, then walks left to right: while
// the similarity of consecutive sentences stays at or above the threshold the
// current chunk is extended; a drop closes it. Greedy single pass, not
// globally optimal.
func (c *Chunker) splitSemantic(ctx context.Context, text string) ([]string, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}
	if len(sentences) == 1 {
		return sentences, nil
	}
	if c.embedder == nil {
		return nil, errors.New("semantic strategy requires an embedder")
	}

	vecs, err := c.embedder.EmbedBatch(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embedding sentences: %w", err)
	}
	if len(vecs) != len(sentences) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d sentences", len(vecs), len(sentences))
	}

	var chunks []string
	current := []string{sentences[0]}
	for i := 1; i < len(sentences); i++ {
		if Cosine(vecs[i-1], vecs[i]) >= c.threshold {
			current = append(current, sentences[i])
			continue
		}
		chunks = append(chunks, strings.Join(current, " "))
		current = []string{sentences[i]}
	}
	chunks = append(chunks, strings.Join(current, " "))
	return chunks, nil
}

// SplitSentences splits trimmed text at whitespace runs that follow a
// sentence terminator (. ! ?). Terminators stay attached to their sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		b.WriteRune(r)
		if !isTerminator(r) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentences = append(sentences, b.String())
		b.Reset()
		for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			i++
		}
	}
	if b.Len() > 0 {
		sentences = append(sentences, b.String())
	}
	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Cosine computes cosine similarity between two vectors. Mismatched lengths
// or a zero vector score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, aSq, bSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aSq += float64(a[i]) * float64(a[i])
		bSq += float64(b[i]) * float64(b[i])
	}
	if aSq == 0 || bSq == 0 {
		return 0
	}
	return dot / (math.Sqrt(aSq) * math.Sqrt(bSq))
}
