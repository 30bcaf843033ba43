package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobTypeEmbedVerse computes and stores the embedding for one verse.
const JobTypeEmbedVerse = "embed_verse"

// EnqueueJob adds a pending job runnable immediately and returns its id.
func (s *Store) EnqueueJob(jobType, payloadJSON string, maxAttempts int) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.Exec(`INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		id, jobType, payloadJSON, JobStatusPending, maxAttempts, now, now, now)
	if err != nil {
		return "", fmt.Errorf("enqueueing %s job: %w", jobType, err)
	}
	return id, nil
}

// ClaimNextJob atomically takes the oldest runnable pending job, marks it
// running, and bumps its attempt counter. Returns ErrNotFound when nothing is
// runnable.
func (s *Store) ClaimNextJob() (Job, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Job{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeFormat)
	row := tx.QueryRow(`SELECT id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error
		FROM jobs WHERE status = ? AND run_after <= ?
		ORDER BY run_after ASC, rowid ASC LIMIT 1`, JobStatusPending, now)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}

	job.Status = JobStatusRunning
	job.Attempts++
	if _, err := tx.Exec("UPDATE jobs SET status = ?, attempts = ?, updated_at = ? WHERE id = ?",
		job.Status, job.Attempts, now, job.ID); err != nil {
		return Job{}, fmt.Errorf("claiming job %s: %w", job.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Job{}, err
	}
	return job, nil
}

// CompleteJob marks a running job done.
func (s *Store) CompleteJob(id string) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.Exec("UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?", JobStatusCompleted, now, id)
	return err
}

// FailJob records a failed attempt. Jobs with attempts left go back to
// pending with exponential backoff (2^attempts minutes); exhausted jobs are
// marked failed permanently.
func (s *Store) FailJob(id string, jobErr error) error {
	var attempts, maxAttempts int
	if err := s.db.QueryRow("SELECT attempts, max_attempts FROM jobs WHERE id = ?", id).Scan(&attempts, &maxAttempts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	now := time.Now().UTC()
	status := JobStatusFailed
	runAfter := now
	if attempts < maxAttempts {
		status = JobStatusPending
		runAfter = now.Add(time.Duration(1<<attempts) * time.Minute)
	}

	_, err := s.db.Exec("UPDATE jobs SET status = ?, run_after = ?, updated_at = ?, last_error = ? WHERE id = ?",
		status, runAfter.Format(timeFormat), now.Format(timeFormat), jobErr.Error(), id)
	return err
}

// PendingJobCount reports how many jobs are waiting or running.
func (s *Store) PendingJobCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM jobs WHERE status IN (?, ?)", JobStatusPending, JobStatusRunning).Scan(&n)
	return n, err
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var runAfter, createdAt, updatedAt string
	var lastErr sql.NullString
	if err := row.Scan(&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts, &runAfter, &createdAt, &updatedAt, &lastErr); err != nil {
		return Job{}, err
	}
	j.LastError = lastErr.String
	var err error
	if j.RunAfter, err = time.Parse(timeFormat, runAfter); err != nil {
		return Job{}, fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return Job{}, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return Job{}, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	return j, nil
}
