package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solacehq/solace/internal/storage"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnqueueVersesCreatesJobs(t *testing.T) {
	store := openTestStore(t)
	verses := []storage.Verse{
		{ID: "A", Text: "alpha text", Source: "S"},
		{ID: "B", Text: "beta text", Source: "S"},
	}
	if err := EnqueueVerses(store, verses); err != nil {
		t.Fatalf("EnqueueVerses: %v", err)
	}

	n, err := store.CountVerses()
	if err != nil {
		t.Fatalf("CountVerses: %v", err)
	}
	if n != 2 {
		t.Errorf("verse count = %d, want 2", n)
	}
	pending, err := store.PendingJobCount()
	if err != nil {
		t.Fatalf("PendingJobCount: %v", err)
	}
	if pending != 2 {
		t.Errorf("pending jobs = %d, want 2", pending)
	}
}

func TestWorkerProcessesEmbedJob(t *testing.T) {
	store := openTestStore(t)
	if err := EnqueueVerses(store, []storage.Verse{{ID: "A", Text: "alpha text", Source: "S"}}); err != nil {
		t.Fatalf("EnqueueVerses: %v", err)
	}

	emb := &stubEmbedder{vec: []float32{1, 2, 3}}
	w := NewWorker(store, emb, "nomic-embed-text", 10*time.Millisecond)

	processed, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !processed {
		t.Fatal("RunOnce processed nothing")
	}

	vv, err := store.Vector("A")
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if len(vv.Embedding) != 3 {
		t.Errorf("embedding = %v", vv.Embedding)
	}

	pending, err := store.PendingJobCount()
	if err != nil {
		t.Fatalf("PendingJobCount: %v", err)
	}
	if pending != 0 {
		t.Errorf("pending jobs = %d, want 0", pending)
	}
}

func TestWorkerIdleQueue(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, &stubEmbedder{}, "m", 0)

	processed, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if processed {
		t.Error("RunOnce claimed a job from an empty queue")
	}
}

func TestWorkerFailedEmbedGoesToRetry(t *testing.T) {
	store := openTestStore(t)
	if err := EnqueueVerses(store, []storage.Verse{{ID: "A", Text: "alpha text", Source: "S"}}); err != nil {
		t.Fatalf("EnqueueVerses: %v", err)
	}

	emb := &stubEmbedder{err: errors.New("embedder down")}
	w := NewWorker(store, emb, "m", 0)

	processed, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !processed {
		t.Fatal("RunOnce should report the failed job as handled")
	}

	// The job is pending again with backoff, so the queue still counts it.
	pending, err := store.PendingJobCount()
	if err != nil {
		t.Fatalf("PendingJobCount: %v", err)
	}
	if pending != 1 {
		t.Errorf("pending jobs = %d, want 1 (awaiting retry)", pending)
	}
	if _, err := store.Vector("A"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("vector stored despite failure: %v", err)
	}
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, &stubEmbedder{}, "m", 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
