package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/docchat/docchat/internal/retrieval"
)

// captureStore records every Upsert batch it receives.
type captureStore struct {
	batches [][]retrieval.Record
	failOn  int // 1-based batch index to fail on; 0 disables
}

func (c *captureStore) Upsert(ctx context.Context, records []retrieval.Record) error {
	if len(records) > retrieval.MaxBatchSize {
		return retrieval.ErrBatchTooLarge
	}
	if c.failOn > 0 && len(c.batches)+1 == c.failOn {
		return errors.New("store unavailable")
	}
	batch := make([]retrieval.Record, len(records))
	copy(batch, records)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureStore) Query(ctx context.Context, vector []float32, topK int) ([]retrieval.ScoredRecord, error) {
	return nil, nil
}
func (c *captureStore) DeleteByFilename(ctx context.Context, filename string) (int, error) {
	return 0, nil
}
func (c *captureStore) Count(ctx context.Context) (int, error) { return 0, nil }

type failingMeta struct{ err error }

func (f *failingMeta) RecordIngestion(ctx context.Context, filename string, chunks []string, strategy string) error {
	return f.err
}

func makeChunks(n int) ([]string, [][]float32) {
	chunks := make([]string, n)
	vectors := make([][]float32, n)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk %d", i)
		vectors[i] = []float32{float32(i), 1}
	}
	return chunks, vectors
}

func TestStoreSplitsBatches(t *testing.T) {
	store := &captureStore{}
	ix := NewIndexer(store, nil)

	chunks, vectors := makeChunks(250)
	result, err := ix.Store(context.Background(), chunks, vectors, "big.txt", "fixed_size")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if result.Stored != 250 {
		t.Errorf("Stored = %d, want 250", result.Stored)
	}

	wantSizes := []int{100, 100, 50}
	if len(store.batches) != len(wantSizes) {
		t.Fatalf("got %d batches, want %d", len(store.batches), len(wantSizes))
	}
	for i, want := range wantSizes {
		if len(store.batches[i]) != want {
			t.Errorf("batch %d has %d records, want %d", i, len(store.batches[i]), want)
		}
	}

	// Chunk order must survive batching.
	last := store.batches[2][49]
	if last.ChunkIndex != 249 || last.Text != "chunk 249" {
		t.Errorf("last record = index %d text %q", last.ChunkIndex, last.Text)
	}
}

func TestStoreLengthMismatch(t *testing.T) {
	ix := NewIndexer(&captureStore{}, nil)

	_, err := ix.Store(context.Background(), []string{"a", "b"}, [][]float32{{1}}, "f.txt", "fixed_size")
	if err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}

func TestStoreEmptyInput(t *testing.T) {
	store := &captureStore{}
	ix := NewIndexer(store, nil)

	result, err := ix.Store(context.Background(), nil, nil, "f.txt", "fixed_size")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if result.Stored != 0 {
		t.Errorf("Stored = %d, want 0", result.Stored)
	}
	if len(store.batches) != 0 {
		t.Error("store should not be called for empty input")
	}
}

func TestStorePartialFailure(t *testing.T) {
	store := &captureStore{failOn: 2}
	ix := NewIndexer(store, nil)

	chunks, vectors := makeChunks(150)
	result, err := ix.Store(context.Background(), chunks, vectors, "f.txt", "fixed_size")
	if err == nil {
		t.Fatal("expected error when a batch fails")
	}
	if result.Stored != 100 {
		t.Errorf("Stored = %d, want 100 (first batch committed)", result.Stored)
	}
}

func TestStoreMetadataFailureIsWarning(t *testing.T) {
	store := &captureStore{}
	ix := NewIndexer(store, &failingMeta{err: errors.New("metadata db down")})

	chunks, vectors := makeChunks(3)
	result, err := ix.Store(context.Background(), chunks, vectors, "f.txt", "semantic")
	if err != nil {
		t.Fatalf("metadata failure must not fail the store: %v", err)
	}
	if result.Stored != 3 {
		t.Errorf("Stored = %d, want 3", result.Stored)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "metadata write failed") {
		t.Errorf("Warnings = %v, want one metadata warning", result.Warnings)
	}
}

func TestStoreTruncatesLongText(t *testing.T) {
	store := &captureStore{}
	ix := NewIndexer(store, nil)

	long := strings.Repeat("y", maxMetadataText+100)
	_, err := ix.Store(context.Background(), []string{long}, [][]float32{{1}}, "f.txt", "fixed_size")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	rec := store.batches[0][0]
	if len([]rune(rec.Text)) != maxMetadataText {
		t.Errorf("stored text length = %d, want %d", len([]rune(rec.Text)), maxMetadataText)
	}
	if rec.ChunkSize != maxMetadataText+100 {
		t.Errorf("ChunkSize = %d, want original length %d", rec.ChunkSize, maxMetadataText+100)
	}
}

func TestRecordIDDeterministic(t *testing.T) {
	a := RecordID("doc.txt", 3, "some chunk text")
	b := RecordID("doc.txt", 3, "some chunk text")
	if a != b {
		t.Errorf("same inputs gave different ids: %s vs %s", a, b)
	}

	if RecordID("doc.txt", 3, "other text") == a {
		t.Error("different content should give a different id")
	}
	if RecordID("doc.txt", 4, "some chunk text") == a {
		t.Error("different index should give a different id")
	}
	if RecordID("other.txt", 3, "some chunk text") == a {
		t.Error("different filename should give a different id")
	}

	if !strings.HasPrefix(a, "doc.txt:3:") {
		t.Errorf("id %q should start with filename and index", a)
	}
	digest := strings.TrimPrefix(a, "doc.txt:3:")
	if len(digest) != 12 {
		t.Errorf("digest part %q should be 12 hex chars", digest)
	}
}
