// Package recommend is the engine's entry point: it composes the mood
// classifier, the embedding index, the selection policy, the reply composer,
// and the history ledger into the chat and daily-verse flows.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"time"

	"github.com/solacehq/solace/internal/index"
	"github.com/solacehq/solace/internal/mood"
	"github.com/solacehq/solace/internal/policy"
	"github.com/solacehq/solace/internal/storage"
)

const (
	// DefaultWindow covers today's draws plus a lookback that keeps verses
	// from feeling repetitive across sessions.
	DefaultWindow = 30
	// DefaultTopK bounds the semantic-search fallback candidate set.
	DefaultTopK = 5
)

// ErrEmptyMessage rejects blank chat input before classification.
var ErrEmptyMessage = errors.New("message must not be empty")

// ErrEmptyCorpus means no verses are ingested; serving anything is
// impossible. Corpus non-emptiness is a deployment precondition.
var ErrEmptyCorpus = errors.New("verse corpus is empty")

// Store is the slice of the persistence layer the engine touches.
type Store interface {
	GetVerse(id string) (storage.Verse, error)
	ListVerses() ([]storage.Verse, error)
	VersesByMood(mood string) ([]storage.Verse, error)
	RecentHistory(userID string, n int) ([]storage.HistoryEntry, error)
	AppendHistory(userID, mood, verseID string) (string, error)
	DailyDraw(userID, day string) (storage.HistoryEntry, error)
	ScheduledVerse(day string) (storage.Verse, error)
}

// Searcher is the embedding index surface the engine queries.
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]index.Match, error)
	Ready() bool
	Size() int
}

// Replier builds the natural-language reply for the chat path.
type Replier interface {
	Compose(ctx context.Context, message string, verse storage.Verse, label mood.Label) (string, bool)
}

// ChatResult is the chat path's output record.
type ChatResult struct {
	VerseID   string `json:"verse_id"`
	Text      string `json:"verse_text"`
	Source    string `json:"verse_source"`
	Mood      string `json:"detected_mood"`
	Reply     string `json:"reply"`
	Generated bool   `json:"generated"`
}

// DailyResult is the daily-verse path's output record.
type DailyResult struct {
	VerseID string `json:"verse_id"`
	Text    string `json:"verse_text"`
	Source  string `json:"verse_source"`
}

// Engine orchestrates verse recommendation. Safe for concurrent use: all
// shared state lives in the store and the index, both of which handle their
// own synchronization.
type Engine struct {
	store    Store
	searcher Searcher
	replier  Replier
	window   int
	topK     int
	now      func() time.Time
}

// Option tweaks Engine construction.
type Option func(*Engine)

// WithWindow overrides the recency window.
func WithWindow(n int) Option {
	return func(e *Engine) { e.window = n }
}

// WithTopK overrides the semantic-search candidate count.
func WithTopK(k int) Option {
	return func(e *Engine) { e.topK = k }
}

// WithClock injects the time source; tests pin it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store Store, searcher Searcher, replier Replier, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		searcher: searcher,
		replier:  replier,
		window:   DefaultWindow,
		topK:     DefaultTopK,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ForChat classifies the message, picks a verse, composes a reply, and
// records the interaction. Generation failures degrade to a template reply
// and never fail the request.
func (e *Engine) ForChat(ctx context.Context, userID, message string) (ChatResult, error) {
	if message == "" {
		return ChatResult{}, ErrEmptyMessage
	}

	label := mood.Classify(message)

	candidates, err := e.chatCandidates(ctx, message, label)
	if err != nil {
		return ChatResult{}, err
	}

	recent, err := e.recentVerseIDs(userID)
	if err != nil {
		return ChatResult{}, err
	}

	verseID, err := policy.Select(candidates, recent, e.window)
	if errors.Is(err, policy.ErrNoCandidates) {
		// Documented worst case: nothing matched the mood or the query, so
		// fall back to an unconditioned pick over the whole corpus.
		slog.Debug("no mood/semantic candidates, falling back to full corpus", "mood", label)
		verseID, err = e.selectFromCorpus(recent)
	}
	if err != nil {
		return ChatResult{}, err
	}

	verse, err := e.store.GetVerse(verseID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("loading selected verse: %w", err)
	}
	verse.Text = TruncateVerse(verse.Text)

	replyText, generated := e.replier.Compose(ctx, message, verse, label)

	if _, err := e.store.AppendHistory(userID, string(label), verse.ID); err != nil {
		return ChatResult{}, fmt.Errorf("recording interaction: %w", err)
	}

	return ChatResult{
		VerseID:   verse.ID,
		Text:      verse.Text,
		Source:    verse.Source,
		Mood:      string(label),
		Reply:     replyText,
		Generated: generated,
	}, nil
}

// Daily returns the user's verse of the day. The draw is deterministic per
// (user, day), idempotent under concurrent and repeated calls, honors an
// admin-scheduled verse, and avoids the recency window via the rotation
// order.
func (e *Engine) Daily(ctx context.Context, userID string) (DailyResult, error) {
	day := e.now().UTC().Format(time.DateOnly)

	// A second call on the same day returns the recorded draw instead of
	// rotating forward. The lookup goes straight to the ledger by day, not
	// through the recency window, so a busy chat day can't hide the row.
	drawn, err := e.store.DailyDraw(userID, day)
	if err == nil {
		verse, err := e.store.GetVerse(drawn.VerseID)
		if err != nil {
			return DailyResult{}, fmt.Errorf("loading today's verse: %w", err)
		}
		return dailyResult(verse), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return DailyResult{}, fmt.Errorf("checking today's draw: %w", err)
	}

	recent, err := e.store.RecentHistory(userID, e.window)
	if err != nil {
		return DailyResult{}, err
	}

	verse, err := e.store.ScheduledVerse(day)
	if errors.Is(err, storage.ErrNotFound) {
		verse, err = e.rotatedDailyVerse(userID, day, recent)
	}
	if err != nil {
		return DailyResult{}, err
	}

	if _, err := e.store.AppendHistory(userID, "", verse.ID); err != nil {
		return DailyResult{}, fmt.Errorf("recording daily draw: %w", err)
	}
	return dailyResult(verse), nil
}

func dailyResult(verse storage.Verse) DailyResult {
	return DailyResult{
		VerseID: verse.ID,
		Text:    TruncateVerse(verse.Text),
		Source:  verse.Source,
	}
}

// rotatedDailyVerse ranks the corpus by a deterministic per-(user, day)
// rotation and runs the usual no-repeat selection over it.
func (e *Engine) rotatedDailyVerse(userID, day string, recent []storage.HistoryEntry) (storage.Verse, error) {
	verses, err := e.store.ListVerses()
	if err != nil {
		return storage.Verse{}, err
	}
	if len(verses) == 0 {
		return storage.Verse{}, ErrEmptyCorpus
	}

	offset := int(dailySeed(userID, day) % uint64(len(verses)))
	candidates := make([]string, 0, len(verses))
	for i := range verses {
		candidates = append(candidates, verses[(offset+i)%len(verses)].ID)
	}

	recentIDs := make([]string, len(recent))
	for i, entry := range recent {
		recentIDs[i] = entry.VerseID
	}

	verseID, err := policy.Select(candidates, recentIDs, e.window)
	if err != nil {
		return storage.Verse{}, err
	}
	return e.store.GetVerse(verseID)
}

// dailySeed hashes (user, day) so each user rotates through the corpus on
// their own schedule while two requests on the same day agree.
func dailySeed(userID, day string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(userID))
	h.Write([]byte{'\n'})
	h.Write([]byte(day))
	return h.Sum64()
}

// chatCandidates builds the ranked candidate list for a chat message:
// mood-tagged verses ordered by semantic similarity to the message (corpus
// order when the index has no signal), falling back to a pure semantic
// search over the full corpus when the tag filter comes up empty.
func (e *Engine) chatCandidates(ctx context.Context, message string, label mood.Label) ([]string, error) {
	tagged, err := e.store.VersesByMood(string(label))
	if err != nil {
		return nil, fmt.Errorf("filtering verses by mood: %w", err)
	}

	if len(tagged) > 0 {
		ids := make([]string, len(tagged))
		for i, v := range tagged {
			ids[i] = v.ID
		}
		e.rankBySimilarity(ctx, message, ids)
		return ids, nil
	}

	if !e.searcher.Ready() {
		return nil, nil
	}
	matches, err := e.searcher.Query(ctx, message, e.topK)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	var ids []string
	for _, m := range matches {
		verse, err := e.store.GetVerse(m.VerseID)
		if err != nil {
			return nil, err
		}
		if mood.ConflictsWith(label, verse.MoodTags) {
			continue
		}
		ids = append(ids, m.VerseID)
	}
	return ids, nil
}

// rankBySimilarity stably reorders ids by their semantic rank against the
// message. Verses the index doesn't know keep their relative corpus order at
// the end. A cold index or a failed query leaves the order untouched.
func (e *Engine) rankBySimilarity(ctx context.Context, message string, ids []string) {
	if !e.searcher.Ready() {
		return
	}
	matches, err := e.searcher.Query(ctx, message, e.searcher.Size())
	if err != nil {
		slog.Debug("similarity ranking unavailable, keeping corpus order", "error", err)
		return
	}
	rank := make(map[string]int, len(matches))
	for i, m := range matches {
		rank[m.VerseID] = i
	}
	sort.SliceStable(ids, func(i, j int) bool {
		ri, iOK := rank[ids[i]]
		rj, jOK := rank[ids[j]]
		if iOK != jOK {
			return iOK
		}
		return ri < rj
	})
}

// selectFromCorpus is the last-resort unconditioned pick.
func (e *Engine) selectFromCorpus(recent []string) (string, error) {
	verses, err := e.store.ListVerses()
	if err != nil {
		return "", err
	}
	if len(verses) == 0 {
		return "", ErrEmptyCorpus
	}
	ids := make([]string, len(verses))
	for i, v := range verses {
		ids[i] = v.ID
	}
	return policy.Select(ids, recent, e.window)
}

func (e *Engine) recentVerseIDs(userID string) ([]string, error) {
	entries, err := e.store.RecentHistory(userID, e.window)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.VerseID
	}
	return ids, nil
}
