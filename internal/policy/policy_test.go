package policy

import (
	"errors"
	"testing"
)

func TestSelectEmptyCandidates(t *testing.T) {
	if _, err := Select(nil, []string{"A"}, 10); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("got %v, want ErrNoCandidates", err)
	}
}

func TestSelectFirstUnseen(t *testing.T) {
	got, err := Select([]string{"A", "B", "C"}, nil, 10)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != "A" {
		t.Errorf("got %s, want A (best-ranked, empty history)", got)
	}
}

func TestSelectSkipsRecent(t *testing.T) {
	got, err := Select([]string{"A", "B", "C"}, []string{"A"}, 10)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != "B" {
		t.Errorf("got %s, want B (A is in the window)", got)
	}
}

func TestSelectAllRecentPicksLeastRecent(t *testing.T) {
	// Newest first: B just shown, A before that, C longest ago.
	got, err := Select([]string{"A", "B", "C"}, []string{"B", "A", "C"}, 10)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != "C" {
		t.Errorf("got %s, want C (least recently shown)", got)
	}
}

func TestSelectAllRecentTieBreaksByRank(t *testing.T) {
	// A and B were both shown at their only occurrence; duplicate history
	// entries for the same verse collapse to its most recent position, so A
	// (position 1) loses to B (position 2) on recency, and rank only decides
	// between candidates shown equally long ago.
	got, err := Select([]string{"A", "B"}, []string{"A", "A", "B"}, 10)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != "B" {
		t.Errorf("got %s, want B (A repeated more recently)", got)
	}
}

func TestSelectWindowLimitsLookback(t *testing.T) {
	// A is in history but outside the 2-entry window, so it counts as unseen.
	got, err := Select([]string{"A", "B"}, []string{"B", "C", "A"}, 2)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != "A" {
		t.Errorf("got %s, want A (outside window)", got)
	}
}

func TestSelectZeroWindow(t *testing.T) {
	// Window 0 disables repetition avoidance entirely.
	got, err := Select([]string{"A"}, []string{"A"}, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != "A" {
		t.Errorf("got %s, want A", got)
	}
}

func TestSelectDeterministic(t *testing.T) {
	candidates := []string{"A", "B", "C"}
	recent := []string{"A", "C"}
	first, err := Select(candidates, recent, 5)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	for range 10 {
		got, err := Select(candidates, recent, 5)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if got != first {
			t.Fatalf("got %s after %s for identical inputs", got, first)
		}
	}
}
