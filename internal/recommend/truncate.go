package recommend

import (
	"strings"
	"unicode/utf8"
)

const (
	maxVerseLen = 500
	// minSentenceCut keeps the truncated text from collapsing to a stub when
	// the last sentence boundary sits very early.
	minSentenceCut = 400
)

// TruncateVerse shortens very long passages for presentation. Text within
// the limit passes through untouched. Longer text is cut at the last
// sentence boundary past minSentenceCut, or hard-cut with an ellipsis when
// no boundary is close enough. Stored verse text is never modified.
func TruncateVerse(text string) string {
	if len(text) <= maxVerseLen {
		return text
	}
	end := maxVerseLen
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	cut := text[:end]
	if i := strings.LastIndex(cut, "."); i > minSentenceCut {
		return cut[:i+1]
	}
	return cut + "..."
}
