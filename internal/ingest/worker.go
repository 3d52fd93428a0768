package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/docchat/docchat/internal/chunker"
	"github.com/docchat/docchat/internal/storage"
)

// JobType is the queue entry kind the worker consumes.
const JobType = "ingest_document"

// JobPayload is the JSON payload of an ingest_document job.
type JobPayload struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Strategy   string `json:"strategy"`
}

// JobStore abstracts the queue and document-status operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
	MarkDocumentStored(id string, chunksCount int, chunksJSON string) error
	MarkDocumentFailed(id string, errMsg string) error
}

// TextExtractor pulls raw text out of an uploaded file.
type TextExtractor interface {
	ExtractFile(path string) (string, error)
}

// Worker processes ingest_document jobs from the SQLite job queue so
// segmentation and embedding never run on the request path.
type Worker struct {
	store     JobStore
	extractor TextExtractor
	pipeline  *Pipeline
	poll      time.Duration
	logger    *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, extractor TextExtractor, pipeline *Pipeline, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:     store,
		extractor: extractor,
		pipeline:  pipeline,
		poll:      pollInterval,
		logger:    slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single ingest_document job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("ingestion job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload JobPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	text, err := w.extractor.ExtractFile(payload.Path)
	if err != nil {
		return w.fail(doc.ID, fmt.Errorf("extracting text from %s: %w", payload.Path, err))
	}

	out, err := w.pipeline.Ingest(ctx, text, doc.Filename, chunker.Strategy(payload.Strategy))
	if err != nil {
		return w.fail(doc.ID, err)
	}

	chunksJSON, err := json.Marshal(out.Chunks)
	if err != nil {
		return w.fail(doc.ID, fmt.Errorf("marshaling chunks: %w", err))
	}
	if err := w.store.MarkDocumentStored(doc.ID, out.Stored, string(chunksJSON)); err != nil {
		return fmt.Errorf("updating document %s: %w", doc.ID, err)
	}

	w.logger.Info("document ingested", "document_id", doc.ID, "filename", doc.Filename, "chunks", out.Stored)
	return nil
}

// fail records the failure on the document row before surfacing the error to
// the job queue for retry accounting.
func (w *Worker) fail(docID string, cause error) error {
	if err := w.store.MarkDocumentFailed(docID, cause.Error()); err != nil {
		w.logger.Error("failed to mark document as failed", "document_id", docID, "error", err)
	}
	return cause
}
