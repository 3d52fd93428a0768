package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Compile-time check that QdrantStore implements VectorStore.
var _ VectorStore = (*QdrantStore)(nil)

// QdrantStore is a minimal REST client to a Qdrant collection. It assumes
// cosine distance and creates the collection on first use.
//
// Qdrant point ids must be UUIDs or integers, so the deterministic record id
// is mapped to a v5 UUID and the original id travels in the payload.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// QdrantConfig holds connection details for a Qdrant instance.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewQdrantStore creates a QdrantStore from the given config.
func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "docchat"
	}
	return &QdrantStore{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection with the given dimension if it does
// not exist yet. Qdrant returns 200 for an existing collection with the same
// schema.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

// pointIDNamespace scopes the v5 UUIDs derived from record ids.
var pointIDNamespace = uuid.MustParse("2d5dd046-6ba4-43b5-8c3a-0aefcf49e72b")

func pointID(recordID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(recordID)).String()
}

// Upsert writes records as Qdrant points. Same-id records replace previous
// points, matching the SQLite backend's upsert semantics.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) > MaxBatchSize {
		return fmt.Errorf("%w: %d records, limit %d", ErrBatchTooLarge, len(records), MaxBatchSize)
	}
	if len(records) == 0 {
		return nil
	}

	points := make([]map[string]any, len(records))
	for i, r := range records {
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		points[i] = map[string]any{
			"id":     pointID(r.ID),
			"vector": r.Embedding,
			"payload": map[string]any{
				"record_id":     r.ID,
				"text":          r.Text,
				"filename":      r.Filename,
				"chunk_index":   r.ChunkIndex,
				"strategy":      r.Strategy,
				"chunk_size":    r.ChunkSize,
				"embedding_dim": r.EmbeddingDim,
				"created_at":    createdAt.Format(time.RFC3339),
			},
		}
	}
	body := map[string]any{"points": points}
	return s.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
}

// Query searches the collection and maps payloads back into records.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}

	results := make([]ScoredRecord, 0, len(resp.Result))
	for _, hit := range resp.Result {
		r := Record{}
		if v, ok := hit.Payload["record_id"].(string); ok {
			r.ID = v
		}
		if v, ok := hit.Payload["text"].(string); ok {
			r.Text = v
		}
		if v, ok := hit.Payload["filename"].(string); ok {
			r.Filename = v
		}
		if v, ok := hit.Payload["chunk_index"].(float64); ok {
			r.ChunkIndex = int(v)
		}
		if v, ok := hit.Payload["strategy"].(string); ok {
			r.Strategy = v
		}
		if v, ok := hit.Payload["chunk_size"].(float64); ok {
			r.ChunkSize = int(v)
		}
		if v, ok := hit.Payload["embedding_dim"].(float64); ok {
			r.EmbeddingDim = int(v)
		}
		if v, ok := hit.Payload["created_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				r.CreatedAt = t
			}
		}
		results = append(results, ScoredRecord{Record: r, Score: hit.Score})
	}
	return results, nil
}

// DeleteByFilename removes all points whose payload filename matches.
func (s *QdrantStore) DeleteByFilename(ctx context.Context, filename string) (int, error) {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "filename", "match": map[string]any{"value": filename}},
			},
		},
	}
	if err := s.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), body, nil); err != nil {
		return 0, err
	}
	// Qdrant's delete-by-filter response does not report a count.
	return 0, nil
}

// Count returns the number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *QdrantStore) doJSON(ctx context.Context, method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
