package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedVerses(t *testing.T, s *Store) []Verse {
	t.Helper()
	verses := []Verse{
		{ID: "Gita_2.47", Text: "You have a right to perform your duty.", Source: "Bhagavad Gita", MoodTags: []string{"neutral", "fear"}},
		{ID: "Psalm_23.1", Text: "The Lord is my shepherd; I shall not want.", Source: "Bible - Psalms", MoodTags: []string{"sad", "fear"}},
		{ID: "Quran_94.5", Text: "Indeed, with hardship comes ease.", Source: "Quran", MoodTags: []string{"sad"}},
		{ID: "Dhammapada_1.1", Text: "All that we are is the result of what we have thought.", Source: "Dhammapada"},
	}
	if err := s.InsertVerses(verses); err != nil {
		t.Fatalf("InsertVerses: %v", err)
	}
	return verses
}

func TestOpenAppliesMigrations(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Fatalf("expected migration 1 applied, got %v", versions)
	}
}

func TestVerseRoundTrip(t *testing.T) {
	s := openTestStore(t)
	seedVerses(t, s)

	v, err := s.GetVerse("Psalm_23.1")
	if err != nil {
		t.Fatalf("GetVerse: %v", err)
	}
	if v.Source != "Bible - Psalms" {
		t.Errorf("source = %q, want %q", v.Source, "Bible - Psalms")
	}
	if len(v.MoodTags) != 2 || v.MoodTags[0] != "sad" {
		t.Errorf("mood tags = %v", v.MoodTags)
	}

	if _, err := s.GetVerse("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing verse: got %v, want ErrNotFound", err)
	}

	n, err := s.CountVerses()
	if err != nil {
		t.Fatalf("CountVerses: %v", err)
	}
	if n != 4 {
		t.Errorf("count = %d, want 4", n)
	}
}

func TestListVersesKeepsInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	seeded := seedVerses(t, s)

	got, err := s.ListVerses()
	if err != nil {
		t.Fatalf("ListVerses: %v", err)
	}
	if len(got) != len(seeded) {
		t.Fatalf("got %d verses, want %d", len(got), len(seeded))
	}
	for i := range seeded {
		if got[i].ID != seeded[i].ID {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, seeded[i].ID)
		}
	}
}

func TestVersesByMoodIncludesUntagged(t *testing.T) {
	s := openTestStore(t)
	seedVerses(t, s)

	got, err := s.VersesByMood("sad")
	if err != nil {
		t.Fatalf("VersesByMood: %v", err)
	}
	// Two tagged "sad" plus the untagged Dhammapada verse.
	wantIDs := []string{"Psalm_23.1", "Quran_94.5", "Dhammapada_1.1"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d verses, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestVectorRoundTrip(t *testing.T) {
	s := openTestStore(t)
	seedVerses(t, s)

	vec := []float32{0.25, -1.5, 3.0}
	if err := s.SaveVector("Gita_2.47", "nomic-embed-text", vec); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}

	got, err := s.Vector("Gita_2.47")
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != -1.5 {
		t.Errorf("embedding = %v, want %v", got.Embedding, vec)
	}

	missing, err := s.MissingVectorVerseIDs("nomic-embed-text")
	if err != nil {
		t.Fatalf("MissingVectorVerseIDs: %v", err)
	}
	if len(missing) != 3 {
		t.Errorf("missing = %v, want 3 ids", missing)
	}

	vectors, err := s.Vectors("nomic-embed-text")
	if err != nil {
		t.Fatalf("Vectors: %v", err)
	}
	if len(vectors) != 1 || vectors[0].VerseID != "Gita_2.47" {
		t.Errorf("vectors = %+v", vectors)
	}
}

func TestReplacingVerseDropsVector(t *testing.T) {
	s := openTestStore(t)
	seedVerses(t, s)

	if err := s.SaveVector("Quran_94.5", "nomic-embed-text", []float32{1, 2}); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}
	if err := s.ReplaceCorpus([]Verse{{ID: "Quran_94.5", Text: "updated", Source: "Quran"}}); err != nil {
		t.Fatalf("ReplaceCorpus: %v", err)
	}
	if _, err := s.Vector("Quran_94.5"); !errors.Is(err, ErrNotFound) {
		t.Errorf("vector after replace: got %v, want ErrNotFound", err)
	}
}

func TestHistoryAppendAndRecent(t *testing.T) {
	s := openTestStore(t)
	seedVerses(t, s)

	if _, err := s.AppendHistory("u1", "sad", "Psalm_23.1"); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if _, err := s.AppendHistory("u1", "", "Gita_2.47"); err != nil {
		t.Fatalf("AppendHistory (no mood): %v", err)
	}
	if _, err := s.AppendHistory("u2", "fear", "Quran_94.5"); err != nil {
		t.Fatalf("AppendHistory (other user): %v", err)
	}

	entries, err := s.RecentHistory("u1", 10)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first; same timestamp resolves by rowid.
	if entries[0].VerseID != "Gita_2.47" || entries[0].Mood != "" {
		t.Errorf("newest entry = %+v", entries[0])
	}
	if entries[1].Mood != "sad" {
		t.Errorf("oldest entry mood = %q, want sad", entries[1].Mood)
	}

	none, err := s.RecentHistory("unknown", 10)
	if err != nil {
		t.Fatalf("RecentHistory (unknown user): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown user entries = %v", none)
	}
}

func TestDailyDrawLookupByDay(t *testing.T) {
	s := openTestStore(t)
	seedVerses(t, s)
	today := time.Now().UTC().Format(time.DateOnly)

	if _, err := s.DailyDraw("u1", today); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no draw yet: got %v, want ErrNotFound", err)
	}

	// Chat rows must never count as the daily draw.
	if _, err := s.AppendHistory("u1", "sad", "Psalm_23.1"); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if _, err := s.DailyDraw("u1", today); !errors.Is(err, ErrNotFound) {
		t.Fatalf("chat row matched as daily draw: got %v, want ErrNotFound", err)
	}

	if _, err := s.AppendHistory("u1", "", "Gita_2.47"); err != nil {
		t.Fatalf("AppendHistory (daily): %v", err)
	}

	// Pile on chat rows; the day lookup must still find the daily row.
	for i := 0; i < 5; i++ {
		if _, err := s.AppendHistory("u1", "fear", "Quran_94.5"); err != nil {
			t.Fatalf("AppendHistory (chat %d): %v", i, err)
		}
	}

	draw, err := s.DailyDraw("u1", today)
	if err != nil {
		t.Fatalf("DailyDraw: %v", err)
	}
	if draw.VerseID != "Gita_2.47" || draw.Mood != "" {
		t.Errorf("draw = %+v, want Gita_2.47 with empty mood", draw)
	}

	if _, err := s.DailyDraw("u2", today); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user's draw leaked: got %v, want ErrNotFound", err)
	}
	if _, err := s.DailyDraw("u1", "1999-01-01"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other day's draw leaked: got %v, want ErrNotFound", err)
	}
}

func TestScheduledVerse(t *testing.T) {
	s := openTestStore(t)
	seedVerses(t, s)

	if _, err := s.ScheduledVerse("2026-09-01"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty schedule: got %v, want ErrNotFound", err)
	}

	if err := s.SetScheduledVerse("2026-09-01", "Quran_94.5"); err != nil {
		t.Fatalf("SetScheduledVerse: %v", err)
	}
	v, err := s.ScheduledVerse("2026-09-01")
	if err != nil {
		t.Fatalf("ScheduledVerse: %v", err)
	}
	if v.ID != "Quran_94.5" {
		t.Errorf("scheduled verse = %s", v.ID)
	}

	// Replacing the same day's schedule wins.
	if err := s.SetScheduledVerse("2026-09-01", "Gita_2.47"); err != nil {
		t.Fatalf("SetScheduledVerse (replace): %v", err)
	}
	v, err = s.ScheduledVerse("2026-09-01")
	if err != nil {
		t.Fatalf("ScheduledVerse (after replace): %v", err)
	}
	if v.ID != "Gita_2.47" {
		t.Errorf("scheduled verse after replace = %s", v.ID)
	}

	if err := s.SetScheduledVerse("2026-09-02", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("scheduling unknown verse: got %v, want ErrNotFound", err)
	}
}

func TestJobQueueLifecycle(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.ClaimNextJob(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty queue: got %v, want ErrNotFound", err)
	}

	id, err := s.EnqueueJob(JobTypeEmbedVerse, `{"verse_id":"Gita_2.47"}`, 3)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob()
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job.ID != id || job.Status != JobStatusRunning || job.Attempts != 1 {
		t.Errorf("claimed job = %+v", job)
	}

	// A running job is not claimable again.
	if _, err := s.ClaimNextJob(); !errors.Is(err, ErrNotFound) {
		t.Errorf("second claim: got %v, want ErrNotFound", err)
	}

	if err := s.CompleteJob(id); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	n, err := s.PendingJobCount()
	if err != nil {
		t.Fatalf("PendingJobCount: %v", err)
	}
	if n != 0 {
		t.Errorf("pending count = %d, want 0", n)
	}
}

func TestFailJobBacksOffThenGivesUp(t *testing.T) {
	s := openTestStore(t)

	id, err := s.EnqueueJob(JobTypeEmbedVerse, `{}`, 2)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob()
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob(job.ID, errors.New("embedder down")); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	// First failure reschedules with backoff, so the job is pending but not
	// yet runnable.
	if _, err := s.ClaimNextJob(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("claim during backoff: got %v, want ErrNotFound", err)
	}

	// Force the job runnable and burn the last attempt.
	if _, err := s.db.Exec("UPDATE jobs SET run_after = '2000-01-01T00:00:00Z' WHERE id = ?", id); err != nil {
		t.Fatalf("rewinding run_after: %v", err)
	}
	job, err = s.ClaimNextJob()
	if err != nil {
		t.Fatalf("ClaimNextJob (retry): %v", err)
	}
	if job.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", job.Attempts)
	}
	if err := s.FailJob(job.ID, errors.New("still down")); err != nil {
		t.Fatalf("FailJob (final): %v", err)
	}

	var status, lastError string
	if err := s.db.QueryRow("SELECT status, last_error FROM jobs WHERE id = ?", id).Scan(&status, &lastError); err != nil {
		t.Fatalf("reading job row: %v", err)
	}
	if status != JobStatusFailed {
		t.Errorf("status = %q, want failed", status)
	}
	if lastError != "still down" {
		t.Errorf("last_error = %q", lastError)
	}
}
