package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/solacehq/solace/internal/storage"
)

// embedConcurrency bounds parallel embedding calls so a large corpus rebuild
// doesn't saturate the embedding backend.
const embedConcurrency = 4

// Store is the slice of the storage layer the builder needs.
type Store interface {
	ListVerses() ([]storage.Verse, error)
	Vectors(model string) ([]storage.VerseVector, error)
	SaveVector(verseID, model string, embedding []float32) error
}

// Builder computes missing verse embeddings and assembles snapshots.
type Builder struct {
	store    Store
	embedder Embedder
	model    string
}

func NewBuilder(store Store, embedder Embedder, model string) *Builder {
	return &Builder{store: store, embedder: embedder, model: model}
}

// Build embeds every verse that has no stored vector for the model, then
// loads all vectors in corpus order into a fresh snapshot. Existing vectors
// are reused as-is; a wholesale corpus replacement drops its vectors, so a
// rebuild after re-ingestion re-embeds everything.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	verses, err := b.store.ListVerses()
	if err != nil {
		return nil, fmt.Errorf("listing verses: %w", err)
	}

	have := make(map[string]bool)
	existing, err := b.store.Vectors(b.model)
	if err != nil {
		return nil, fmt.Errorf("loading stored vectors: %w", err)
	}
	for _, v := range existing {
		have[v.VerseID] = true
	}

	var missing []storage.Verse
	for _, v := range verses {
		if !have[v.ID] {
			missing = append(missing, v)
		}
	}

	if len(missing) > 0 {
		slog.Info("embedding verses", "missing", len(missing), "total", len(verses), "model", b.model)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(embedConcurrency)
		for _, v := range missing {
			g.Go(func() error {
				vec, err := b.embedder.Embed(gctx, b.model, SearchableText(v))
				if err != nil {
					return fmt.Errorf("embedding %s: %w", v.ID, err)
				}
				if err := b.store.SaveVector(v.ID, b.model, vec); err != nil {
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	vectors, err := b.store.Vectors(b.model)
	if err != nil {
		return nil, fmt.Errorf("reloading vectors: %w", err)
	}
	return NewSnapshot(vectors), nil
}

// SearchableText is what gets embedded for a verse: the passage itself plus
// its source and mood tags, so "psalm about fear" style queries land near the
// right verses.
func SearchableText(v storage.Verse) string {
	parts := []string{v.Text, v.Source}
	parts = append(parts, v.MoodTags...)
	return strings.Join(parts, " ")
}
