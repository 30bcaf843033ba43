// Package api exposes the recommendation engine over HTTP and MCP. All
// routes except /health require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/solacehq/solace/internal/ingest"
	"github.com/solacehq/solace/internal/recommend"
	"github.com/solacehq/solace/internal/storage"
)

const maxChatBodySize = 1 << 20    // 1MB
const maxIngestBodySize = 10 << 20 // 10MB

// defaultUserID names the single-user deployment; callers that track
// multiple users pass their own ids.
const defaultUserID = "local"

// Recommender is the engine surface the transport layer calls.
type Recommender interface {
	ForChat(ctx context.Context, userID, message string) (recommend.ChatResult, error)
	Daily(ctx context.Context, userID string) (recommend.DailyResult, error)
}

// Reindexer rebuilds the embedding index and reports the published size.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// ReindexFunc adapts a plain function to Reindexer.
type ReindexFunc func(ctx context.Context) (int, error)

func (f ReindexFunc) Reindex(ctx context.Context) (int, error) { return f(ctx) }

// IndexStatus reports whether a search snapshot has been published.
type IndexStatus interface {
	Ready() bool
	Size() int
}

type Deps struct {
	Store   *storage.Store
	Engine  Recommender
	Index   IndexStatus
	Reindex Reindexer // optional; if nil, POST /reindex reports unavailable
	Token   string
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/chat", handleChat(deps))
		r.Get("/daily-verse", handleDaily(deps))
		r.Put("/daily-verse/schedule", handleSchedule(deps))
		r.Get("/history", handleHistory(deps))
		r.Post("/verses", handleIngestVerses(deps))
		r.Post("/reindex", handleReindex(deps))
		r.Get("/stats", handleStats(deps))
	})

	return r
}

// handleHealth reports 503 until the first index snapshot is published, so
// orchestrators hold traffic during the initial embed.
func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !deps.Index.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"starting"}`))
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			req.UserID = defaultUserID
		}

		result, err := deps.Engine.ForChat(r.Context(), req.UserID, req.Message)
		if errors.Is(err, recommend.ErrEmptyMessage) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		if errors.Is(err, recommend.ErrEmptyCorpus) {
			httpError(w, http.StatusServiceUnavailable, "api_error", "verse corpus is empty; ingest verses first")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "chat failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

func handleDaily(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			userID = defaultUserID
		}

		result, err := deps.Engine.Daily(r.Context(), userID)
		if errors.Is(err, recommend.ErrEmptyCorpus) {
			httpError(w, http.StatusServiceUnavailable, "api_error", "verse corpus is empty; ingest verses first")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "daily verse failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

type scheduleRequest struct {
	Day     string `json:"day"`
	VerseID string `json:"verse_id"`
}

// handleSchedule pins a verse as the daily draw for a given day, overriding
// the per-user rotation.
func handleSchedule(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
		defer r.Body.Close()

		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if _, err := time.Parse(time.DateOnly, req.Day); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "day must be YYYY-MM-DD: %v", err)
			return
		}
		if req.VerseID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "verse_id is required")
			return
		}

		err := deps.Store.SetScheduledVerse(req.Day, req.VerseID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "verse %s not found", req.VerseID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "scheduling verse: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "scheduled"})
	}
}

type historyItem struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Mood      string `json:"mood,omitempty"`
	VerseID   string `json:"verse_id"`
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			userID = defaultUserID
		}
		limit := parseIntParam(r, "limit", 20, 100)

		entries, err := deps.Store.RecentHistory(userID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading history: %v", err)
			return
		}

		items := make([]historyItem, len(entries))
		for i, e := range entries {
			items[i] = historyItem{
				ID:        e.ID,
				CreatedAt: e.CreatedAt.Format(time.RFC3339),
				Mood:      e.Mood,
				VerseID:   e.VerseID,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(items)
	}
}

// handleIngestVerses accepts a JSONL corpus body, upserts the verses, and
// queues one embedding job per verse. With ?replace=true the existing corpus
// (and its vectors) is dropped first.
func handleIngestVerses(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
		defer r.Body.Close()

		verses, err := ingest.ParseJSONL(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "parsing corpus: %v", err)
			return
		}
		if len(verses) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "corpus body is empty")
			return
		}

		if r.URL.Query().Get("replace") == "true" {
			if err := deps.Store.ReplaceCorpus(verses); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "replacing corpus: %v", err)
				return
			}
		}
		if err := ingest.EnqueueVerses(deps.Store, verses); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "queueing verses: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"ingested": len(verses),
			"status":   "queued",
		})
	}
}

func handleReindex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Reindex == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "reindexing is not available")
			return
		}

		size, err := deps.Reindex.Reindex(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reindex failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"indexed": size,
			"status":  "ok",
		})
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verseCount, err := deps.Store.CountVerses()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting verses: %v", err)
			return
		}
		pending, err := deps.Store.PendingJobCount()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "counting jobs: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"verses":       verseCount,
			"pending_jobs": pending,
			"index_ready":  deps.Index.Ready(),
			"index_size":   deps.Index.Size(),
		})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
