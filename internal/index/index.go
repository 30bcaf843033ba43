// Package index provides brute-force cosine similarity search over the verse
// corpus. Snapshots are immutable once built; a running service swaps in a
// rebuilt snapshot atomically so concurrent queries never observe a
// half-built index.
package index

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/solacehq/solace/internal/storage"
)

// ErrNotBuilt is returned by Query before the first snapshot is published.
// The service reports itself unhealthy until this clears.
var ErrNotBuilt = errors.New("index not built")

// Embedder turns text into a fixed-length vector. Implemented by the Ollama
// client.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Match is one search hit.
type Match struct {
	VerseID string
	Score   float32
}

type entry struct {
	id   string
	vec  []float32
	norm float32
}

// Snapshot is an immutable in-memory view of all verse vectors, held in
// corpus insertion order. Build a new one and Publish it instead of mutating.
type Snapshot struct {
	entries []entry
}

// NewSnapshot builds a snapshot from stored vectors, which must already be in
// corpus insertion order (storage.Vectors guarantees this).
func NewSnapshot(vectors []storage.VerseVector) *Snapshot {
	s := &Snapshot{entries: make([]entry, 0, len(vectors))}
	for _, v := range vectors {
		s.entries = append(s.entries, entry{
			id:   v.VerseID,
			vec:  v.Embedding,
			norm: norm(v.Embedding),
		})
	}
	return s
}

// Size returns the number of indexed verses.
func (s *Snapshot) Size() int {
	return len(s.entries)
}

// Search returns the top-k entries by cosine similarity, descending, ties
// broken by corpus insertion order. k is capped to the snapshot size. An
// empty snapshot or a zero query vector yields nil.
func (s *Snapshot) Search(query []float32, k int) []Match {
	if len(s.entries) == 0 || k <= 0 {
		return nil
	}
	if k > len(s.entries) {
		k = len(s.entries)
	}
	queryNorm := norm(query)
	if queryNorm == 0 {
		return nil
	}

	h := &matchHeap{}
	heap.Init(h)
	for order, e := range s.entries {
		score := cosine(query, queryNorm, e.vec, e.norm)
		cand := rankedMatch{id: e.id, score: score, order: order}
		if h.Len() < k {
			heap.Push(h, cand)
		} else if worst := (*h)[0]; cand.beats(worst) {
			(*h)[0] = cand
			heap.Fix(h, 0)
		}
	}

	matches := make([]Match, h.Len())
	for i := len(matches) - 1; i >= 0; i-- {
		m := heap.Pop(h).(rankedMatch)
		matches[i] = Match{VerseID: m.id, Score: m.score}
	}
	return matches
}

// Index pairs the published snapshot with the embedder used for queries.
// Queries embed with the same model the corpus was embedded with, or the
// similarity scores would be meaningless.
type Index struct {
	embedder Embedder
	model    string
	snap     atomic.Pointer[Snapshot]
}

// New creates an Index with no published snapshot. Query returns ErrNotBuilt
// until Publish is called.
func New(embedder Embedder, model string) *Index {
	return &Index{embedder: embedder, model: model}
}

// Publish atomically swaps in a new snapshot. In-flight queries finish
// against the old one; new queries see the new one.
func (ix *Index) Publish(s *Snapshot) {
	ix.snap.Store(s)
}

// Ready reports whether a snapshot has been published.
func (ix *Index) Ready() bool {
	return ix.snap.Load() != nil
}

// Size returns the published snapshot's verse count, 0 when unbuilt.
func (ix *Index) Size() int {
	if s := ix.snap.Load(); s != nil {
		return s.Size()
	}
	return 0
}

// Query embeds text and searches the published snapshot. It returns
// ErrNotBuilt before the first Publish; an empty published snapshot yields
// nil matches and no error.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Match, error) {
	snap := ix.snap.Load()
	if snap == nil {
		return nil, ErrNotBuilt
	}
	if snap.Size() == 0 {
		return nil, nil
	}
	vec, err := ix.embedder.Embed(ctx, ix.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return snap.Search(vec, k), nil
}

func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * bNorm) with precomputed norms.
func cosine(a []float32, aNorm float32, b []float32, bNorm float32) float32 {
	if len(a) != len(b) || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (float64(aNorm) * float64(bNorm)))
}

// rankedMatch carries the corpus position so equal scores resolve to the
// earlier verse.
type rankedMatch struct {
	id    string
	score float32
	order int
}

// beats reports whether m should displace worst in the result set.
func (m rankedMatch) beats(worst rankedMatch) bool {
	if m.score != worst.score {
		return m.score > worst.score
	}
	return m.order < worst.order
}

// matchHeap is a min-heap keeping the current worst result at the root.
type matchHeap []rankedMatch

func (h matchHeap) Len() int { return len(h) }
func (h matchHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].order > h[j].order
}
func (h matchHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x any)   { *h = append(*h, x.(rankedMatch)) }
func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
