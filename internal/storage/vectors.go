package storage

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// VerseVector pairs a verse with its stored embedding. Vectors returned by
// Vectors follow corpus insertion order, which the index treats as rank
// tie-break order.
type VerseVector struct {
	VerseID   string
	Model     string
	Embedding []float32
}

// SaveVector persists (or replaces) the embedding for one verse.
func (s *Store) SaveVector(verseID, model string, embedding []float32) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.Exec(`INSERT INTO verse_vectors (verse_id, model, embedding, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(verse_id) DO UPDATE SET model = excluded.model, embedding = excluded.embedding, created_at = excluded.created_at`,
		verseID, model, encodeFloat32s(embedding), now)
	if err != nil {
		return fmt.Errorf("saving vector for %s: %w", verseID, err)
	}
	return nil
}

// Vector returns the stored embedding for one verse, or ErrNotFound.
func (s *Store) Vector(verseID string) (VerseVector, error) {
	var vv VerseVector
	var blob []byte
	err := s.db.QueryRow("SELECT verse_id, model, embedding FROM verse_vectors WHERE verse_id = ?", verseID).
		Scan(&vv.VerseID, &vv.Model, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return VerseVector{}, ErrNotFound
	}
	if err != nil {
		return VerseVector{}, err
	}
	vv.Embedding, err = decodeFloat32s(blob)
	if err != nil {
		return VerseVector{}, fmt.Errorf("decoding vector for %s: %w", verseID, err)
	}
	return vv, nil
}

// Vectors returns all stored embeddings in corpus insertion order. Verses
// without a vector are skipped; use MissingVectorVerseIDs to find them.
func (s *Store) Vectors(model string) ([]VerseVector, error) {
	rows, err := s.db.Query(`SELECT vv.verse_id, vv.model, vv.embedding
		FROM verse_vectors vv JOIN verses v ON v.id = vv.verse_id
		WHERE vv.model = ?
		ORDER BY v.rowid ASC`, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vectors []VerseVector
	for rows.Next() {
		var vv VerseVector
		var blob []byte
		if err := rows.Scan(&vv.VerseID, &vv.Model, &blob); err != nil {
			return nil, err
		}
		vv.Embedding, err = decodeFloat32s(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding vector for %s: %w", vv.VerseID, err)
		}
		vectors = append(vectors, vv)
	}
	return vectors, rows.Err()
}

// MissingVectorVerseIDs returns, in insertion order, ids of verses with no
// stored embedding for the given model.
func (s *Store) MissingVectorVerseIDs(model string) ([]string, error) {
	rows, err := s.db.Query(`SELECT v.id FROM verses v
		LEFT JOIN verse_vectors vv ON vv.verse_id = v.id AND vv.model = ?
		WHERE vv.verse_id IS NULL
		ORDER BY v.rowid ASC`, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// encodeFloat32s packs a vector as little-endian float32 bytes.
func encodeFloat32s(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32s(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
