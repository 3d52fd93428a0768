package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeQueryEmbedder struct {
	vec []float32
	err error
}

func (f *fakeQueryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeVectorStore struct {
	results []ScoredRecord
	err     error
	gotTopK int
}

func (f *fakeVectorStore) Upsert(ctx context.Context, records []Record) error { return nil }
func (f *fakeVectorStore) Query(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error) {
	f.gotTopK = topK
	return f.results, f.err
}
func (f *fakeVectorStore) DeleteByFilename(ctx context.Context, filename string) (int, error) {
	return 0, nil
}
func (f *fakeVectorStore) Count(ctx context.Context) (int, error) { return len(f.results), nil }

func scoredRecord(id, text string, score float32) ScoredRecord {
	return ScoredRecord{
		Record: Record{ID: id, Text: text, Filename: "doc.txt"},
		Score:  score,
	}
}

func TestSearchCombinesContext(t *testing.T) {
	store := &fakeVectorStore{results: []ScoredRecord{
		scoredRecord("a", "first chunk", 0.9),
		scoredRecord("b", "", 0.8),
		scoredRecord("c", "third chunk", 0.7),
	}}
	r := NewRetriever(&fakeQueryEmbedder{vec: []float32{1}}, store)

	result, err := r.Search(context.Background(), "what?", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.gotTopK != 3 {
		t.Errorf("topK passed to store = %d, want 3", store.gotTopK)
	}
	if len(result.Hits) != 3 {
		t.Fatalf("got %d hits, want 3 (empty texts still appear as hits)", len(result.Hits))
	}
	want := "first chunk\n\nthird chunk"
	if result.Context != want {
		t.Errorf("Context = %q, want %q", result.Context, want)
	}
	if result.Hits[0].ID != "a" || result.Hits[2].ID != "c" {
		t.Error("hits should keep the store's rank order")
	}
}

func TestSearchPreviewTruncation(t *testing.T) {
	long := strings.Repeat("x", 300)
	store := &fakeVectorStore{results: []ScoredRecord{scoredRecord("a", long, 0.9)}}
	r := NewRetriever(&fakeQueryEmbedder{vec: []float32{1}}, store)

	result, err := r.Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	p := result.Hits[0].Preview
	if len([]rune(p)) != previewLength+3 {
		t.Errorf("preview length = %d, want %d + ellipsis", len([]rune(p)), previewLength)
	}
	if !strings.HasSuffix(p, "...") {
		t.Errorf("truncated preview should end with ellipsis, got %q", p[len(p)-10:])
	}
	if result.Hits[0].Text != long {
		t.Error("full text should be preserved alongside the preview")
	}

	short := "short text"
	store.results = []ScoredRecord{scoredRecord("b", short, 0.5)}
	result, err = r.Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Hits[0].Preview != short {
		t.Errorf("short preview = %q, want %q", result.Hits[0].Preview, short)
	}
}

func TestSearchEmbedderError(t *testing.T) {
	wantErr := errors.New("embed down")
	r := NewRetriever(&fakeQueryEmbedder{err: wantErr}, &fakeVectorStore{})

	if _, err := r.Search(context.Background(), "q", 5); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped embedder error, got %v", err)
	}
}

func TestSearchStoreError(t *testing.T) {
	wantErr := errors.New("store down")
	r := NewRetriever(&fakeQueryEmbedder{vec: []float32{1}}, &fakeVectorStore{err: wantErr})

	if _, err := r.Search(context.Background(), "q", 5); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestSearchNoResults(t *testing.T) {
	r := NewRetriever(&fakeQueryEmbedder{vec: []float32{1}}, &fakeVectorStore{})

	result, err := r.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Hits) != 0 || result.Context != "" {
		t.Errorf("expected empty result, got %+v", result)
	}
}
