package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Verse is one corpus passage. Verses are written in bulk during ingestion
// and never mutated afterwards; a changed corpus is replaced wholesale.
type Verse struct {
	ID        string   // stable identifier, e.g. "Psalm_23.1"
	Text      string
	Source    string   // human-readable origin, e.g. "Bible - Psalms"
	MoodTags  []string // may be empty: verse fits any mood
	CreatedAt time.Time
}

// HistoryEntry is one row of the per-user session ledger. Mood is empty for
// daily-verse draws, which carry no detected mood.
type HistoryEntry struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Mood      string
	VerseID   string
}

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
