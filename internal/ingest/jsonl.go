// Package ingest loads verses into the corpus from JSONL, PDF, and HTML
// sources, and runs the background worker that embeds them.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/solacehq/solace/internal/mood"
	"github.com/solacehq/solace/internal/storage"
)

// jsonlVerse is one line of a JSONL corpus file.
type jsonlVerse struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Source   string   `json:"source"`
	MoodTags []string `json:"mood_tags"`
}

// ParseJSONL reads one verse per line. Blank lines are skipped. A missing id
// is synthesized from the source and line position; mood tags are normalized
// into the closed taxonomy and deduplicated.
func ParseJSONL(r io.Reader) ([]storage.Verse, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var verses []storage.Verse
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var jv jsonlVerse
		if err := json.Unmarshal([]byte(raw), &jv); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if jv.Text == "" {
			return nil, fmt.Errorf("line %d: verse text is empty", line)
		}
		if jv.Source == "" {
			return nil, fmt.Errorf("line %d: verse source is empty", line)
		}
		if jv.ID == "" {
			jv.ID = fmt.Sprintf("%s_%d", idPrefix(jv.Source), line)
		}

		verses = append(verses, storage.Verse{
			ID:       jv.ID,
			Text:     jv.Text,
			Source:   jv.Source,
			MoodTags: normalizeTags(jv.MoodTags),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return verses, nil
}

// normalizeTags folds recognized mood names ("sadness", "anxious") into the
// closed taxonomy but keeps unrecognized descriptive tags ("celebration",
// "comfort") verbatim, since the conflict filter relies on them. Duplicates
// collapse, first-seen order wins.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag == "" {
			continue
		}
		if label, ok := mood.Canonical(tag); ok {
			tag = string(label)
		}
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

// idPrefix turns a source label into the id prefix, e.g. "Bible - Psalms"
// becomes "Psalms".
func idPrefix(source string) string {
	if i := strings.LastIndex(source, "-"); i >= 0 {
		source = source[i+1:]
	}
	return strings.ReplaceAll(strings.TrimSpace(source), " ", "")
}
