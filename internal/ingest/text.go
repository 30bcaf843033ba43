package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/solacehq/solace/internal/storage"
)

// minVerseLen filters out page numbers, headings, and other fragments that
// slip through the marker split.
const minVerseLen = 20

// markerRE finds chapter.verse or surah:verse markers that open a passage.
var markerRE = regexp.MustCompile(`(\d+)[.:](\d+)\s+`)

var spaceRE = regexp.MustCompile(`\s+`)

// SplitVerses parses numbered passages out of extracted document text.
// Markers like "2.47" or "94:5" open a passage that runs to the next marker.
// Passage ids are "{prefix}_{chapter}.{number}"; prefix defaults to the
// source label when empty.
func SplitVerses(text, source, prefix string) []storage.Verse {
	if prefix == "" {
		prefix = idPrefix(source)
	}

	locs := markerRE.FindAllStringSubmatchIndex(text, -1)
	var verses []storage.Verse
	for i, loc := range locs {
		chapter := text[loc[2]:loc[3]]
		number := text[loc[4]:loc[5]]

		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := cleanPassage(text[loc[1]:end])
		if len(body) < minVerseLen {
			continue
		}

		verses = append(verses, storage.Verse{
			ID:     fmt.Sprintf("%s_%s.%s", prefix, chapter, number),
			Text:   body,
			Source: source,
		})
	}
	return verses
}

// cleanPassage collapses whitespace runs left behind by PDF text extraction.
func cleanPassage(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}
