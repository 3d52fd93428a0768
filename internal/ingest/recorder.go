package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docchat/docchat/internal/storage"
)

// Compile-time check that DocumentRecorder implements MetadataWriter.
var _ MetadataWriter = (*DocumentRecorder)(nil)

// DocumentRecorder writes the ingestion-metadata row for documents indexed
// outside the upload/worker flow (CLI ingestion, inline uploads), where no
// queued document row exists yet.
type DocumentRecorder struct {
	store *storage.Store
}

// NewDocumentRecorder creates a DocumentRecorder over the given store.
func NewDocumentRecorder(store *storage.Store) *DocumentRecorder {
	return &DocumentRecorder{store: store}
}

// RecordIngestion inserts a fresh documents row marked as stored.
func (r *DocumentRecorder) RecordIngestion(ctx context.Context, filename string, chunks []string, strategy string) error {
	chunksJSON, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("marshaling chunks: %w", err)
	}
	return r.store.SaveDocument(storage.Document{
		ID:          uuid.New().String(),
		Filename:    filename,
		UploadTime:  time.Now().UTC(),
		ChunksCount: len(chunks),
		Strategy:    strategy,
		Chunks:      string(chunksJSON),
		Status:      storage.DocStatusStored,
	})
}
