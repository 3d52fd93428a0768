package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document statuses.
const (
	DocStatusQueued = "queued"
	DocStatusStored = "stored"
	DocStatusFailed = "failed"
)

// Document is the ingestion-metadata row for one uploaded document.
type Document struct {
	ID          string
	Filename    string
	UploadTime  time.Time
	ChunksCount int
	Strategy    string
	Chunks      string // JSON array of chunk texts stored as text
	Status      string // "queued", "stored", "failed"
	LastError   string
}

// Booking is a persisted appointment request, one row per user (last write wins).
type Booking struct {
	UserID    string
	Name      string
	Email     string
	Date      string // YYYY-MM-DD
	Time      string // HH:MM
	CreatedAt time.Time
}

// Job is a queued background task.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
