package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docchat/docchat/internal/chunker"
	"github.com/docchat/docchat/internal/ingest"
	"github.com/docchat/docchat/internal/parser"
	"github.com/docchat/docchat/internal/pipeline"
	"github.com/docchat/docchat/internal/retrieval"
	"github.com/docchat/docchat/internal/storage"
)

const maxUploadSize = 20 << 20 // 20MB

type AppDeps struct {
	Store     *storage.Store
	Extractor *parser.Extractor
	Pipeline  *ingest.Pipeline
	Composer  *pipeline.Composer
	Vectors   retrieval.VectorStore

	UploadsDir      string
	Token           string // empty disables bearer auth
	DefaultStrategy chunker.Strategy
	TopK            int
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/upload", handleUpload(deps))
		r.Post("/chat", handleChat(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Get("/documents/{id}", handleGetDocument(deps))
		r.Delete("/documents/{id}", handleDeleteDocument(deps))
		r.Get("/bookings/{user_id}", handleGetBooking(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type documentResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	UploadTime  string `json:"upload_time"`
	ChunksCount int    `json:"chunks_count"`
	Strategy    string `json:"strategy"`
	Status      string `json:"status"`
	LastError   string `json:"last_error,omitempty"`
}

func toDocumentResponse(d storage.Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		Filename:    d.Filename,
		UploadTime:  d.UploadTime.UTC().Format(time.RFC3339),
		ChunksCount: d.ChunksCount,
		Strategy:    d.Strategy,
		Status:      d.Status,
		LastError:   d.LastError,
	}
}

func handleUpload(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file field is required: %v", err)
			return
		}
		defer file.Close()

		filename := filepath.Base(header.Filename)
		if !parser.Supported(filename) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unsupported file type: %s", filename)
			return
		}

		strategy := deps.DefaultStrategy
		if s := r.URL.Query().Get("strategy"); s != "" {
			strategy = chunker.Strategy(s)
			if strategy != chunker.FixedSize && strategy != chunker.Semantic {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown chunking strategy: %q", s)
				return
			}
		}

		if err := os.MkdirAll(deps.UploadsDir, 0o755); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create uploads directory: %v", err)
			return
		}

		docID := uuid.New().String()
		path := filepath.Join(deps.UploadsDir, docID+"_"+filename)
		dst, err := os.Create(path)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save upload: %v", err)
			return
		}
		if _, err := io.Copy(dst, file); err != nil {
			dst.Close()
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save upload: %v", err)
			return
		}
		if err := dst.Close(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save upload: %v", err)
			return
		}

		doc := storage.Document{
			ID:         docID,
			Filename:   filename,
			UploadTime: time.Now().UTC(),
			Strategy:   string(strategy),
			Status:     storage.DocStatusQueued,
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save document: %v", err)
			return
		}

		if wait := r.URL.Query().Get("wait"); wait == "1" || wait == "true" {
			ingestInline(w, r, deps, doc, path, strategy)
			return
		}

		payload, err := json.Marshal(ingest.JobPayload{
			DocumentID: docID,
			Path:       path,
			Strategy:   string(strategy),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
			return
		}
		job := storage.Job{
			ID:          uuid.New().String(),
			Type:        ingest.JobType,
			PayloadJSON: string(payload),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"id":       docID,
			"filename": filename,
			"status":   storage.DocStatusQueued,
		})
	}
}

// ingestInline runs the full chunk/embed/index pipeline in the request,
// for callers that pass ?wait=1 and want the chunk count back.
func ingestInline(w http.ResponseWriter, r *http.Request, deps AppDeps, doc storage.Document, path string, strategy chunker.Strategy) {
	text, err := deps.Extractor.ExtractFile(path)
	if err != nil {
		deps.Store.MarkDocumentFailed(doc.ID, err.Error())
		httpError(w, http.StatusBadRequest, "invalid_request_error", "failed to extract text: %v", err)
		return
	}

	out, err := deps.Pipeline.Ingest(r.Context(), text, doc.Filename, strategy)
	if err != nil {
		deps.Store.MarkDocumentFailed(doc.ID, err.Error())
		httpError(w, http.StatusBadGateway, "api_error", "ingestion failed: %v", err)
		return
	}

	chunksJSON, err := json.Marshal(out.Chunks)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to marshal chunks: %v", err)
		return
	}
	if err := deps.Store.MarkDocumentStored(doc.ID, out.Stored, string(chunksJSON)); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to update document: %v", err)
		return
	}

	resp := map[string]any{
		"id":       doc.ID,
		"filename": doc.Filename,
		"status":   storage.DocStatusStored,
		"chunks":   out.Stored,
	}
	if len(out.Warnings) > 0 {
		resp["warnings"] = out.Warnings
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type chatRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	TopK   int    `json:"top_k"`
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}
		if req.UserID == "" {
			req.UserID = uuid.New().String()
		}
		topK := req.TopK
		if topK <= 0 {
			topK = deps.TopK
		}

		answer := deps.Composer.Respond(r.Context(), req.UserID, req.Query, topK)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"query":   req.Query,
			"user_id": req.UserID,
			"answer":  answer,
		})
	}
}

func handleListDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		docs, err := deps.Store.ListDocuments(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}

		out := make([]documentResponse, 0, len(docs))
		for _, d := range docs {
			out = append(out, toDocumentResponse(d))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleGetDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := deps.Store.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(toDocumentResponse(doc))
	}
}

func handleDeleteDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := deps.Store.GetDocument(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "document not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get document: %v", err)
			return
		}

		deleted := 0
		if deps.Vectors != nil {
			n, err := deps.Vectors.DeleteByFilename(r.Context(), doc.Filename)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "failed to delete vectors: %v", err)
				return
			}
			deleted = n
		}

		if err := deps.Store.DeleteDocument(id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete document: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":          "deleted",
			"vectors_deleted": deleted,
		})
	}
}

type bookingResponse struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	CreatedAt string `json:"created_at"`
}

func handleGetBooking(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")

		b, err := deps.Store.GetBooking(userID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no booking for user")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get booking: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(bookingResponse{
			UserID:    b.UserID,
			Name:      b.Name,
			Email:     b.Email,
			Date:      b.Date,
			Time:      b.Time,
			CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
