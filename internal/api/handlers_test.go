package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/solacehq/solace/internal/index"
	"github.com/solacehq/solace/internal/mood"
	"github.com/solacehq/solace/internal/recommend"
	"github.com/solacehq/solace/internal/storage"
)

const testToken = "test-token-12345"

// --- stubs ---

type stubSearcher struct {
	ready   bool
	matches []index.Match
}

func (s *stubSearcher) Query(_ context.Context, _ string, _ int) ([]index.Match, error) {
	return s.matches, nil
}
func (s *stubSearcher) Ready() bool { return s.ready }
func (s *stubSearcher) Size() int   { return len(s.matches) }

type stubReplier struct{}

func (stubReplier) Compose(_ context.Context, _ string, _ storage.Verse, _ mood.Label) (string, bool) {
	return "take heart", false
}

type stubIndexStatus struct {
	ready bool
	size  int
}

func (s *stubIndexStatus) Ready() bool { return s.ready }
func (s *stubIndexStatus) Size() int   { return s.size }

// --- helpers ---

func setupHandler(t *testing.T, seed bool) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if seed {
		seedCorpus(t, store)
	}

	engine := recommend.New(store, &stubSearcher{}, stubReplier{})
	handler := NewHandler(Deps{
		Store:  store,
		Engine: engine,
		Index:  &stubIndexStatus{ready: true, size: 3},
		Token:  testToken,
	})
	return handler, store
}

func seedCorpus(t *testing.T, store *storage.Store) {
	t.Helper()
	err := store.InsertVerses([]storage.Verse{
		{ID: "Gita_2.47", Text: "You have a right to your actions, but never to the fruits.", Source: "Bhagavad Gita", MoodTags: []string{"neutral"}},
		{ID: "Psalm_23.1", Text: "The Lord is my shepherd; I shall not want.", Source: "Bible - Psalms", MoodTags: []string{"sad", "fear"}},
		{ID: "Quran_94.5", Text: "Indeed, with hardship comes ease.", Source: "Quran", MoodTags: []string{"sad"}},
	})
	if err != nil {
		t.Fatalf("seeding corpus: %v", err)
	}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeJSON(t *testing.T, r io.Reader, v any) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

// --- tests ---

func TestHealthReflectsIndexState(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	status := &stubIndexStatus{ready: false}
	h := NewHandler(Deps{
		Store:  store,
		Engine: recommend.New(store, &stubSearcher{}, stubReplier{}),
		Index:  status,
		Token:  testToken,
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status before index = %d, want 503", rr.Code)
	}

	status.ready = true
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status after index = %d, want 200", rr.Code)
	}
}

func TestChatRequiresAuth(t *testing.T) {
	h, _ := setupHandler(t, true)

	for _, token := range []string{"", "wrong-token"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodPost, "/chat", `{"message":"hello"}`, token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rr.Code)
		}
	}

	// A non-bearer scheme must be rejected the same way.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Authorization", "Basic "+testToken)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("basic scheme: status = %d, want 401", rr.Code)
	}
}

func TestChatReturnsVerseAndRecordsHistory(t *testing.T) {
	h, store := setupHandler(t, true)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/chat", `{"message":"I feel so sad and lost"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var result recommend.ChatResult
	decodeJSON(t, rr.Body, &result)
	if result.Mood != "sad" {
		t.Errorf("detected mood = %q, want sad", result.Mood)
	}
	if result.VerseID != "Psalm_23.1" {
		t.Errorf("verse = %q, want Psalm_23.1 (first sad-tagged verse)", result.VerseID)
	}
	if result.Reply != "take heart" {
		t.Errorf("reply = %q", result.Reply)
	}

	entries, err := store.RecentHistory(defaultUserID, 10)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(entries) != 1 || entries[0].VerseID != "Psalm_23.1" || entries[0].Mood != "sad" {
		t.Errorf("history = %+v, want one sad Psalm_23.1 entry", entries)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	h, _ := setupHandler(t, true)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/chat", `{"message":""}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestChatWithEmptyCorpus(t *testing.T) {
	h, _ := setupHandler(t, false)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/chat", `{"message":"hello there"}`, testToken))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503; body = %s", rr.Code, rr.Body.String())
	}
}

func TestDailyVerseIsStablePerDay(t *testing.T) {
	h, _ := setupHandler(t, true)

	get := func() recommend.DailyResult {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodGet, "/daily-verse", "", testToken))
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
		}
		var result recommend.DailyResult
		decodeJSON(t, rr.Body, &result)
		return result
	}

	first := get()
	if first.VerseID == "" {
		t.Fatal("daily verse has no id")
	}
	second := get()
	if second.VerseID != first.VerseID {
		t.Errorf("second call = %q, first = %q; want same verse", second.VerseID, first.VerseID)
	}
}

func TestScheduleOverridesDailyVerse(t *testing.T) {
	h, _ := setupHandler(t, true)

	day := time.Now().UTC().Format(time.DateOnly)
	body := `{"day":"` + day + `","verse_id":"Gita_2.47"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPut, "/daily-verse/schedule", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("schedule status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/daily-verse", "", testToken))
	var result recommend.DailyResult
	decodeJSON(t, rr.Body, &result)
	if result.VerseID != "Gita_2.47" {
		t.Errorf("daily verse = %q, want scheduled Gita_2.47", result.VerseID)
	}
}

func TestScheduleUnknownVerse(t *testing.T) {
	h, _ := setupHandler(t, true)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPut, "/daily-verse/schedule", `{"day":"2026-09-01","verse_id":"Nope_1.1"}`, testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestScheduleRejectsBadDay(t *testing.T) {
	h, _ := setupHandler(t, true)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPut, "/daily-verse/schedule", `{"day":"Sept 1","verse_id":"Gita_2.47"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	h, _ := setupHandler(t, true)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/chat", `{"message":"I feel sad"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("chat status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/history?limit=5", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("history status = %d", rr.Code)
	}

	var items []historyItem
	decodeJSON(t, rr.Body, &items)
	if len(items) != 1 {
		t.Fatalf("got %d history items, want 1", len(items))
	}
	if items[0].Mood != "sad" || items[0].VerseID == "" {
		t.Errorf("history item = %+v", items[0])
	}
	if _, err := time.Parse(time.RFC3339, items[0].CreatedAt); err != nil {
		t.Errorf("created_at %q is not RFC3339: %v", items[0].CreatedAt, err)
	}
}

func TestIngestVersesQueuesEmbedJobs(t *testing.T) {
	h, store := setupHandler(t, false)

	body := `{"id":"Psalm_46.1","text":"God is our refuge and strength, a very present help in trouble.","source":"Bible - Psalms","mood_tags":["fear"]}
{"id":"Gita_6.5","text":"Let a man lift himself by his own self alone.","source":"Bhagavad Gita"}`

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/verses", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	decodeJSON(t, rr.Body, &resp)
	if resp["ingested"] != float64(2) || resp["status"] != "queued" {
		t.Errorf("response = %v", resp)
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

func TestIngestReplaceDropsOldCorpus(t *testing.T) {
	h, store := setupHandler(t, true)

	body := `{"id":"Tao_1.1","text":"The Tao that can be told is not the eternal Tao, the name that can be named is not the eternal name.","source":"Tao Te Ching"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/verses?replace=true", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	n, err := store.CountVerses()
	if err != nil {
		t.Fatalf("CountVerses: %v", err)
	}
	if n != 1 {
		t.Errorf("verse count after replace = %d, want 1", n)
	}
	if _, err := store.GetVerse("Psalm_23.1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("old verse survived replace: err = %v", err)
	}
}

func TestIngestRejectsMalformedCorpus(t *testing.T) {
	h, _ := setupHandler(t, false)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/verses", "not json at all", testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestReindexPublishesSnapshot(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewHandler(Deps{
		Store:  store,
		Engine: recommend.New(store, &stubSearcher{}, stubReplier{}),
		Index:  &stubIndexStatus{ready: true},
		Reindex: ReindexFunc(func(ctx context.Context) (int, error) {
			return 7, nil
		}),
		Token: testToken,
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/reindex", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp map[string]any
	decodeJSON(t, rr.Body, &resp)
	if resp["indexed"] != float64(7) {
		t.Errorf("indexed = %v, want 7", resp["indexed"])
	}
}

func TestReindexUnavailable(t *testing.T) {
	h, _ := setupHandler(t, false)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/reindex", "", testToken))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestStats(t *testing.T) {
	h, _ := setupHandler(t, true)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/stats", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp map[string]any
	decodeJSON(t, rr.Body, &resp)
	if resp["verses"] != float64(3) {
		t.Errorf("verses = %v, want 3", resp["verses"])
	}
	if resp["index_ready"] != true {
		t.Errorf("index_ready = %v, want true", resp["index_ready"])
	}
}
