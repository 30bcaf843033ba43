package mood

import "strings"

// Label is a mood from the closed taxonomy. Everything downstream of the
// classifier (candidate filtering, selection, templates) only ever sees one
// of these values.
type Label string

const (
	Happy    Label = "happy"
	Sad      Label = "sad"
	Angry    Label = "angry"
	Fear     Label = "fear"
	Surprise Label = "surprise"
	Disgust  Label = "disgust"
	Neutral  Label = "neutral"
)

// Labels returns every valid label.
func Labels() []Label {
	return []Label{Happy, Sad, Angry, Fear, Surprise, Disgust, Neutral}
}

// synonyms folds wider intent vocabularies (older tag sets, upstream
// classifiers) into the closed taxonomy.
var synonyms = map[string]Label{
	"sadness":  Sad,
	"sorrow":   Sad,
	"grief":    Sad,
	"anger":    Angry,
	"rage":     Angry,
	"anxious":  Fear,
	"anxiety":  Fear,
	"worry":    Fear,
	"worried":  Fear,
	"joy":      Happy,
	"joyful":   Happy,
	"peaceful": Happy,
	"seeking":  Neutral,
	"calm":     Neutral,
}

// Canonical maps a mood/intent string to its closed-set Label and reports
// whether the string was recognized at all.
func Canonical(s string) (Label, bool) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Labels() {
		if l == known {
			return known, true
		}
	}
	if folded, ok := synonyms[string(l)]; ok {
		return folded, true
	}
	return Neutral, false
}

// Normalize maps an arbitrary mood/intent string to a valid Label. Unknown
// strings become Neutral; Normalize never fails.
func Normalize(s string) Label {
	l, _ := Canonical(s)
	return l
}

// conflicts lists verse tags that should not be served for a given mood.
// A comfort verse tagged "celebration" is wrong for grief, and vice versa.
var conflicts = map[Label][]string{
	Sad:   {"happy", "joy", "celebration"},
	Happy: {"sad", "sorrow", "grief"},
	Angry: {"happy", "joy", "celebration"},
	Fear:  {"happy", "joy", "celebration"},
}

// ConflictsWith reports whether a verse carrying the given tags should be
// excluded for the mood. Untagged verses never conflict.
func ConflictsWith(mood Label, tags []string) bool {
	bad := conflicts[mood]
	for _, tag := range tags {
		for _, b := range bad {
			if strings.EqualFold(tag, b) {
				return true
			}
		}
	}
	return false
}
