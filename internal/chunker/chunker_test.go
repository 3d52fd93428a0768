package chunker

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeEmbedder returns canned vectors keyed by sentence text.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{1, 0, 0}
		}
		out[i] = v
	}
	return out, nil
}

func TestSplitFixedSizeWindows(t *testing.T) {
	text := strings.Repeat("a", 1050)
	chunks := SplitFixedSize(text, 500)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if len([]rune(c)) != 500 {
			t.Errorf("chunk %d has %d chars, want 500", i, len([]rune(c)))
		}
	}
	if got := len([]rune(chunks[2])); got != 50 {
		t.Errorf("last chunk has %d chars, want 50", got)
	}
	if strings.Join(chunks, "") != text {
		t.Error("concatenated chunks do not reproduce the input")
	}
}

func TestSplitFixedSizeRuneBoundaries(t *testing.T) {
	text := strings.Repeat("é", 7)
	chunks := SplitFixedSize(text, 3)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Error("multibyte input not reproduced by concatenation")
	}
}

func TestSplitFixedSizeWhitespaceOnly(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  \n"} {
		if chunks := SplitFixedSize(text, 100); len(chunks) != 0 {
			t.Errorf("SplitFixedSize(%q) = %v, want empty", text, chunks)
		}
	}
}

func TestSplitUnknownStrategy(t *testing.T) {
	c := New(nil, 0, 0)
	_, err := c.Split(context.Background(), "some text", Strategy("recursive"))
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
	if !strings.Contains(err.Error(), "recursive") {
		t.Errorf("error should name the strategy, got %q", err.Error())
	}
}

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"No terminator here", []string{"No terminator here"}},
		{"Version 2.5 shipped. It works.", []string{"Version 2.5 shipped.", "It works."}},
		{"Spaced.   Out.", []string{"Spaced.", "Out."}},
		{"", nil},
		{"   ", nil},
	}
	for _, tc := range cases {
		got := SplitSentences(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("SplitSentences(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("SplitSentences(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestSemanticGroupsSimilarSentences(t *testing.T) {
	// First two sentences share a direction, third points elsewhere.
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"Cats purr.":      {1, 0, 0},
		"Cats also meow.": {0.9, 0.1, 0},
		"Taxes are due.":  {0, 1, 0},
	}}
	c := New(emb, 0, 0.75)

	chunks, err := c.Split(context.Background(), "Cats purr. Cats also meow. Taxes are due.", Semantic)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := []string{"Cats purr. Cats also meow.", "Taxes are due."}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %v, want %v", len(chunks), chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
	if emb.calls != 1 {
		t.Errorf("expected a single batch embed call, got %d", emb.calls)
	}
}

func TestSemanticThresholdBoundary(t *testing.T) {
	// Identical embeddings give similarity exactly 1.0; with threshold 1.0
	// the comparison is inclusive, so everything stays in one chunk.
	emb := &fakeEmbedder{vectors: map[string][]float32{}}
	c := New(emb, 0, 1.0)

	chunks, err := c.Split(context.Background(), "Same. Same. Same.", Semantic)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk at inclusive threshold, got %v", chunks)
	}
}

func TestSemanticSingleSentenceSkipsEmbedding(t *testing.T) {
	emb := &fakeEmbedder{}
	c := New(emb, 0, 0)

	chunks, err := c.Split(context.Background(), "Only one sentence here.", Semantic)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "Only one sentence here." {
		t.Fatalf("got %v, want the sentence unchanged", chunks)
	}
	if emb.calls != 0 {
		t.Errorf("embedder should not be called for a single sentence")
	}
}

func TestSemanticEmbedderError(t *testing.T) {
	wantErr := errors.New("backend down")
	c := New(&fakeEmbedder{err: wantErr}, 0, 0)

	_, err := c.Split(context.Background(), "One. Two.", Semantic)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped embedder error, got %v", err)
	}
}

func TestSemanticEmptyInput(t *testing.T) {
	c := New(&fakeEmbedder{}, 0, 0)
	chunks, err := c.Split(context.Background(), "  \n ", Semantic)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %v", chunks)
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0}); got < 0.9999 {
		t.Errorf("identical vectors: got %f, want ~1", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors: got %f, want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 0}); got != 0 {
		t.Errorf("zero vector: got %f, want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths: got %f, want 0", got)
	}
}
