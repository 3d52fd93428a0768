// Package history keeps the short-term conversation memory: a bounded,
// newest-first list of chat lines per user that expires after a period of
// inactivity.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Role-prefix convention for chat lines.
const (
	UserPrefix = "User: "
	BotPrefix  = "Bot: "
)

const (
	// DefaultLimit is how many lines are retained per user.
	DefaultLimit = 20
	// DefaultTTL is the inactivity window after which a user's history expires.
	DefaultTTL = 24 * time.Hour
)

// Store is a per-user bounded conversation list backed by SQLite. Push and
// trim are single statements, so concurrent requests for the same user
// interleave at line granularity without extra locking (last write wins).
type Store struct {
	db    *sql.DB
	limit int
	ttl   time.Duration
}

// New creates a Store. limit <= 0 and ttl <= 0 fall back to the defaults.
// The chat_messages table must already exist (created via migrations).
func New(db *sql.DB, limit int, ttl time.Duration) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, limit: limit, ttl: ttl}
}

// Push appends a line to the user's history and trims the list back to the
// retention limit, dropping the oldest lines first.
func (s *Store) Push(ctx context.Context, userID, line string) error {
	if err := s.expire(ctx, userID); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (user_id, line, created_at) VALUES (?, ?, ?)`,
		userID, line, now,
	); err != nil {
		return fmt.Errorf("pushing chat line: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM chat_messages
		WHERE user_id = ? AND seq NOT IN (
			SELECT seq FROM chat_messages WHERE user_id = ? ORDER BY seq DESC LIMIT ?
		)`,
		userID, userID, s.limit,
	); err != nil {
		return fmt.Errorf("trimming chat history: %w", err)
	}
	return nil
}

// Recent returns up to n lines for the user, newest first.
func (s *Store) Recent(ctx context.Context, userID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := s.expire(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT line FROM chat_messages WHERE user_id = ? ORDER BY seq DESC LIMIT ?`,
		userID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("reading chat history: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// expire drops the whole history of a user whose newest line is older than
// the inactivity window.
func (s *Store) expire(ctx context.Context, userID string) error {
	cutoff := time.Now().UTC().Add(-s.ttl).Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM chat_messages
		WHERE user_id = ?
		AND (SELECT MAX(created_at) FROM chat_messages WHERE user_id = ?) < ?`,
		userID, userID, cutoff,
	); err != nil {
		return fmt.Errorf("expiring chat history: %w", err)
	}
	return nil
}
