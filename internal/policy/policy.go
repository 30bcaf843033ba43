// Package policy picks one verse from a ranked candidate list while
// minimizing repetition against a user's recent history. It is a pure
// function of its inputs, which keeps the orchestrator's behavior fully
// reproducible in tests.
package policy

import "errors"

// ErrNoCandidates is returned when the candidate list is empty. Callers fall
// back to an unconditioned pick over the full corpus.
var ErrNoCandidates = errors.New("no candidate verses")

// Select returns one verse id from candidates, which must be ordered best
// first. recent is the user's recently shown verse ids, newest first; only
// the first window entries count. The first candidate outside the window
// wins. When every candidate was shown recently, Select falls back to the
// least recently shown one, breaking ties by candidate rank, so users in
// long sessions see rotation rather than an error.
func Select(candidates, recent []string, window int) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoCandidates
	}

	if window > len(recent) {
		window = len(recent)
	}
	// Most recent position of each verse inside the window. Position 0 is
	// the newest entry.
	lastShown := make(map[string]int, window)
	for i := window - 1; i >= 0; i-- {
		lastShown[recent[i]] = i
	}

	best := ""
	bestPos := -1
	for _, id := range candidates {
		pos, seen := lastShown[id]
		if !seen {
			return id, nil
		}
		// Larger position means shown longer ago. Strict comparison keeps
		// the earliest-ranked candidate on ties.
		if pos > bestPos {
			best, bestPos = id, pos
		}
	}
	return best, nil
}
