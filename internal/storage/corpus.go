package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

// timeFormat is how timestamps are stored in TEXT columns. RFC3339 sorts
// lexicographically, which idx_history_user_time relies on.
const timeFormat = time.RFC3339

// InsertVerses adds verses to the corpus in one transaction. Existing rows
// with the same id are replaced; replacing a verse drops its stored vector
// (ON DELETE CASCADE) so it gets re-embedded.
func (s *Store) InsertVerses(verses []Verse) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO verses (id, text, source, mood_tags, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, source = excluded.source, mood_tags = excluded.mood_tags`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(timeFormat)
	for _, v := range verses {
		tags := v.MoodTags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("encoding mood tags for %s: %w", v.ID, err)
		}
		if _, err := stmt.Exec(v.ID, v.Text, v.Source, string(tagsJSON), now); err != nil {
			return fmt.Errorf("inserting verse %s: %w", v.ID, err)
		}
	}
	return tx.Commit()
}

// ReplaceCorpus deletes every verse (vectors cascade) and inserts the given
// set. Used by full corpus rebuilds.
func (s *Store) ReplaceCorpus(verses []Verse) error {
	if _, err := s.db.Exec("DELETE FROM verses"); err != nil {
		return fmt.Errorf("clearing corpus: %w", err)
	}
	return s.InsertVerses(verses)
}

// GetVerse returns a single verse by id, or ErrNotFound.
func (s *Store) GetVerse(id string) (Verse, error) {
	row := s.db.QueryRow("SELECT id, text, source, mood_tags, created_at FROM verses WHERE id = ?", id)
	v, err := scanVerse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Verse{}, ErrNotFound
	}
	return v, err
}

// ListVerses returns the whole corpus in insertion order.
func (s *Store) ListVerses() ([]Verse, error) {
	rows, err := s.db.Query("SELECT id, text, source, mood_tags, created_at FROM verses ORDER BY rowid ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verses []Verse
	for rows.Next() {
		v, err := scanVerse(rows)
		if err != nil {
			return nil, err
		}
		verses = append(verses, v)
	}
	return verses, rows.Err()
}

// CountVerses returns the corpus size.
func (s *Store) CountVerses() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM verses").Scan(&n)
	return n, err
}

// VersesByMood returns, in insertion order, verses whose mood_tags contain the
// given mood or are empty (untagged verses fit any mood). Tag filtering
// happens Go-side; the corpus is small enough that a table scan is fine.
func (s *Store) VersesByMood(mood string) ([]Verse, error) {
	all, err := s.ListVerses()
	if err != nil {
		return nil, err
	}
	var out []Verse
	for _, v := range all {
		if len(v.MoodTags) == 0 || slices.Contains(v.MoodTags, mood) {
			out = append(out, v)
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerse(row rowScanner) (Verse, error) {
	var v Verse
	var tagsJSON, createdAt string
	if err := row.Scan(&v.ID, &v.Text, &v.Source, &tagsJSON, &createdAt); err != nil {
		return Verse{}, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &v.MoodTags); err != nil {
		return Verse{}, fmt.Errorf("decoding mood tags for %s: %w", v.ID, err)
	}
	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return Verse{}, fmt.Errorf("parsing created_at for %s: %w", v.ID, err)
	}
	v.CreatedAt = t
	return v, nil
}
