package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solacehq/solace/internal/index"
	"github.com/solacehq/solace/internal/storage"
)

// JobStore is the storage surface the worker needs.
type JobStore interface {
	InsertVerses(verses []storage.Verse) error
	EnqueueJob(jobType, payloadJSON string, maxAttempts int) (string, error)
	ClaimNextJob() (storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, jobErr error) error
	GetVerse(id string) (storage.Verse, error)
	SaveVector(verseID, model string, embedding []float32) error
}

const embedJobAttempts = 3

// EnqueueVerses inserts verses and queues one embed_verse job per verse. The
// background worker picks them up; a reindex publishes the vectors once they
// exist.
func EnqueueVerses(store JobStore, verses []storage.Verse) error {
	if err := store.InsertVerses(verses); err != nil {
		return fmt.Errorf("inserting verses: %w", err)
	}
	for _, v := range verses {
		payload, err := json.Marshal(embedPayload{VerseID: v.ID})
		if err != nil {
			return err
		}
		if _, err := store.EnqueueJob(storage.JobTypeEmbedVerse, string(payload), embedJobAttempts); err != nil {
			return err
		}
	}
	return nil
}

// Worker drains embed_verse jobs from the SQLite queue, computing and
// persisting one embedding per job.
type Worker struct {
	store    JobStore
	embedder index.Embedder
	model    string
	poll     time.Duration
}

// NewWorker creates a Worker. pollInterval <= 0 defaults to 500ms.
func NewWorker(store JobStore, embedder index.Embedder, model string, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{store: store, embedder: embedder, model: model, poll: pollInterval}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.RunOnce(ctx)
		if err != nil {
			slog.Error("embed worker iteration failed", "error", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. It reports whether a job was
// handled, success or not.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob()
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}

	if err := w.processJob(ctx, job); err != nil {
		slog.Warn("embed job failed", "job_id", job.ID, "attempt", job.Attempts, "error", err)
		if failErr := w.store.FailJob(job.ID, err); failErr != nil {
			slog.Error("marking job failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type embedPayload struct {
	VerseID string `json:"verse_id"`
}

func (w *Worker) processJob(ctx context.Context, job storage.Job) error {
	if job.Type != storage.JobTypeEmbedVerse {
		return fmt.Errorf("unknown job type %q", job.Type)
	}

	var payload embedPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	verse, err := w.store.GetVerse(payload.VerseID)
	if err != nil {
		return fmt.Errorf("loading verse %s: %w", payload.VerseID, err)
	}

	vec, err := w.embedder.Embed(ctx, w.model, index.SearchableText(verse))
	if err != nil {
		return fmt.Errorf("embedding verse %s: %w", verse.ID, err)
	}

	if err := w.store.SaveVector(verse.ID, w.model, vec); err != nil {
		return fmt.Errorf("saving vector for %s: %w", verse.ID, err)
	}
	return nil
}
