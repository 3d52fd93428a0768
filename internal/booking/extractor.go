// Package booking detects appointment requests in chat queries via LLM
// structured extraction and persists the accepted ones.
package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/docchat/docchat/internal/llm"
)

const extractionTimeout = 10 * time.Second

// Request is the structured appointment data extracted from a query.
// Fields the model reported as null arrive as empty strings.
type Request struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"` // YYYY-MM-DD
	Time  string `json:"time"` // HH:MM
}

// Valid is the acceptance gate: a request is persisted only when both email
// and date were extracted.
func (r Request) Valid() bool {
	return r.Email != "" && r.Date != ""
}

// Completer is the chat-completion capability the extractor calls.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, temperature float64) (string, error)
}

// Extractor runs the booking-extraction prompt against the language model.
// It is applied to every chat turn: a false positive routes a normal
// question into the booking path. Known precision tradeoff; this type is
// the seam where a cheaper intent classifier could replace the LLM call.
type Extractor struct {
	client Completer
	logger *slog.Logger
}

// NewExtractor creates an Extractor using the given completion client.
func NewExtractor(client Completer) *Extractor {
	return &Extractor{client: client, logger: slog.Default()}
}

// Extract analyses the query and returns the booking request, or nil when no
// valid booking could be extracted. Extraction is opportunistic: timeouts,
// malformed JSON, and the acceptance gate all yield nil, never an error.
func (e *Extractor) Extract(ctx context.Context, query string) *Request {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	// Temperature 0: determinism-seeking, not guaranteed.
	raw, err := e.client.Complete(ctx, BuildPrompt(query), 0)
	if err != nil {
		e.logger.Warn("booking extraction call failed", "error", err)
		return nil
	}

	var result Request
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &result); err != nil {
		e.logger.Warn("failed to unmarshal booking from LLM response", "error", err, "response", raw)
		return nil
	}
	if !result.Valid() {
		return nil
	}
	return &result
}
