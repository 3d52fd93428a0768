// Package pipeline assembles chat responses: it records the conversation
// turn, checks for booking intent, gathers history and retrieved context,
// and calls the language model.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docchat/docchat/internal/booking"
	"github.com/docchat/docchat/internal/chunker"
	"github.com/docchat/docchat/internal/history"
	"github.com/docchat/docchat/internal/llm"
	"github.com/docchat/docchat/internal/retrieval"
	"github.com/docchat/docchat/internal/storage"
)

const (
	// historyTurns is how many recent lines feed the prompt.
	historyTurns = 3
	// historyMaxChars is the tail-truncation bound for the history block,
	// keeping the most recent text when over the limit.
	historyMaxChars = 1000
	// answerTemperature is used for the final answer call.
	answerTemperature = 0.2
	// DefaultTopK is used when the caller does not request a hit count.
	DefaultTopK = 5
)

// HistoryStore is the conversation-memory contract the composer needs.
type HistoryStore interface {
	Push(ctx context.Context, userID, line string) error
	Recent(ctx context.Context, userID string, n int) ([]string, error)
}

// Searcher retrieves context for a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) (retrieval.SearchResult, error)
}

// Extractor detects booking intent in a query.
type Extractor interface {
	Extract(ctx context.Context, query string) *booking.Request
}

// BookingSaver persists accepted booking requests.
type BookingSaver interface {
	SaveBooking(b storage.Booking) error
}

// Completer is the chat-completion capability for the final answer.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, temperature float64) (string, error)
}

// Composer orchestrates one chat request end to end.
type Composer struct {
	history   HistoryStore
	extractor Extractor
	bookings  BookingSaver
	retriever Searcher
	client    Completer
	topK      int
	logger    *slog.Logger
}

// NewComposer wires the composer. topK is the default hit count when the
// caller passes none (<= 0 falls back to DefaultTopK).
func NewComposer(hist HistoryStore, extractor Extractor, bookings BookingSaver, retriever Searcher, client Completer, topK int) *Composer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Composer{
		history:   hist,
		extractor: extractor,
		bookings:  bookings,
		retriever: retriever,
		client:    client,
		topK:      topK,
		logger:    slog.Default(),
	}
}

// Respond answers a chat query for a user. The chat endpoint must never
// crash, so every failure below this boundary becomes a structured
// error-string answer; nothing underneath swallows errors a second time.
func (c *Composer) Respond(ctx context.Context, userID, query string, topK int) string {
	if topK <= 0 {
		topK = c.topK
	}
	answer, err := c.respond(ctx, userID, query, topK)
	if err != nil {
		c.logger.Warn("chat response failed", "user_id", userID, "error", err)
		return fmt.Sprintf("Error (%s): %v", classify(err), err)
	}
	return answer
}

func (c *Composer) respond(ctx context.Context, userID, query string, topK int) (string, error) {
	// 1. Record the user turn.
	if err := c.history.Push(ctx, userID, history.UserPrefix+query); err != nil {
		return "", fmt.Errorf("recording user turn: %w", err)
	}

	// 2. Booking short-circuit: a valid extraction skips retrieval and the
	// answering LLM call entirely.
	if req := c.extractor.Extract(ctx, query); req != nil {
		if err := c.bookings.SaveBooking(storage.Booking{
			UserID: userID,
			Name:   req.Name,
			Email:  req.Email,
			Date:   req.Date,
			Time:   req.Time,
		}); err != nil {
			return "", fmt.Errorf("saving booking: %w", err)
		}
		return fmt.Sprintf("Booked for %s on %s at %s", req.Name, req.Date, req.Time), nil
	}

	// 3. Recent history, most-recent-biased truncation.
	lines, err := c.history.Recent(ctx, userID, historyTurns)
	if err != nil {
		return "", fmt.Errorf("reading chat history: %w", err)
	}
	chatContext := tail(strings.Join(lines, "\n"), historyMaxChars)

	// 4. Retrieved context.
	result, err := c.retriever.Search(ctx, query, topK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}

	// 5-6. Compose and call the model with the raw query as the user turn.
	messages := []llm.Message{
		{Role: "system", Content: BuildSystemPrompt(chatContext, result.Context)},
		{Role: "user", Content: query},
	}
	answer, err := c.client.Complete(ctx, messages, answerTemperature)
	if err != nil {
		return "", fmt.Errorf("completing answer: %w", err)
	}

	// 7. Record the bot turn.
	if err := c.history.Push(ctx, userID, history.BotPrefix+answer); err != nil {
		return "", fmt.Errorf("recording bot turn: %w", err)
	}

	return answer, nil
}

// tail keeps the last max characters of s.
func tail(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[len(runes)-max:])
}

// classify maps an error to the taxonomy kind reported in the error-string
// answer.
func classify(err error) string {
	switch {
	case errors.Is(err, chunker.ErrUnknownStrategy):
		return "invalid_argument"
	case errors.Is(err, retrieval.ErrBatchTooLarge):
		return "batch_limit_exceeded"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "external_service"
	}
}
