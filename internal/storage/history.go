package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendHistory records one interaction. Mood may be empty (daily draws carry
// no detected mood) and is stored as NULL. The assigned row id is returned.
func (s *Store) AppendHistory(userID, mood, verseID string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(timeFormat)

	var moodVal any
	if mood != "" {
		moodVal = mood
	}
	_, err := s.db.Exec(`INSERT INTO history (id, user_id, created_at, mood, verse_id)
		VALUES (?, ?, ?, ?, ?)`, id, userID, now, moodVal, verseID)
	if err != nil {
		return "", fmt.Errorf("appending history for %s: %w", userID, err)
	}
	return id, nil
}

// RecentHistory returns the user's most recent entries, newest first, at most
// n rows. An unknown user yields an empty slice.
func (s *Store) RecentHistory(userID string, n int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(`SELECT id, user_id, created_at, mood, verse_id
		FROM history WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var createdAt string
		var mood sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &createdAt, &mood, &e.VerseID); err != nil {
			return nil, err
		}
		e.Mood = mood.String
		e.CreatedAt, err = time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at for history %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DailyDraw returns the user's recorded daily-verse draw for a day
// (YYYY-MM-DD), or ErrNotFound when none exists. Daily rows are the ones with
// a NULL mood; the lookup is by day, not by recency, so chat activity can
// never hide today's draw.
func (s *Store) DailyDraw(userID, day string) (HistoryEntry, error) {
	row := s.db.QueryRow(`SELECT id, user_id, created_at, mood, verse_id
		FROM history WHERE user_id = ? AND mood IS NULL AND created_at LIKE ? || '%'
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, userID, day)

	var e HistoryEntry
	var createdAt string
	var mood sql.NullString
	err := row.Scan(&e.ID, &e.UserID, &createdAt, &mood, &e.VerseID)
	if errors.Is(err, sql.ErrNoRows) {
		return HistoryEntry{}, ErrNotFound
	}
	if err != nil {
		return HistoryEntry{}, err
	}
	e.Mood = mood.String
	e.CreatedAt, err = time.Parse(timeFormat, createdAt)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("parsing created_at for history %s: %w", e.ID, err)
	}
	return e, nil
}

// SetScheduledVerse pins a verse for a given day (YYYY-MM-DD), replacing any
// previous schedule for that day.
func (s *Store) SetScheduledVerse(day, verseID string) error {
	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM verses WHERE id = ?", verseID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("scheduling %s for %s: %w", verseID, day, ErrNotFound)
	}
	_, err := s.db.Exec(`INSERT INTO daily_schedule (day, verse_id) VALUES (?, ?)
		ON CONFLICT(day) DO UPDATE SET verse_id = excluded.verse_id`, day, verseID)
	return err
}

// ScheduledVerse returns the verse pinned for a day, or ErrNotFound when no
// schedule exists.
func (s *Store) ScheduledVerse(day string) (Verse, error) {
	var verseID string
	err := s.db.QueryRow("SELECT verse_id FROM daily_schedule WHERE day = ?", day).Scan(&verseID)
	if errors.Is(err, sql.ErrNoRows) {
		return Verse{}, ErrNotFound
	}
	if err != nil {
		return Verse{}, err
	}
	return s.GetVerse(verseID)
}
