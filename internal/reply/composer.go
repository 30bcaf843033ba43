// Package reply turns a selected verse into the natural-language reply sent
// back to the user. Generation goes through an opaque Completer with one
// bounded attempt; every failure path lands on the mood-keyed template, so a
// reply always comes back.
package reply

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/solacehq/solace/internal/llm"
	"github.com/solacehq/solace/internal/mood"
	"github.com/solacehq/solace/internal/storage"
)

const defaultTimeout = 30 * time.Second

// Composer builds replies. A nil completer means template-only operation.
type Composer struct {
	completer llm.Completer
	timeout   time.Duration
}

// NewComposer creates a Composer. timeout <= 0 uses the default 30s bound.
func NewComposer(completer llm.Completer, timeout time.Duration) *Composer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Composer{completer: completer, timeout: timeout}
}

// Compose returns the reply text and whether it came from the generation
// backend (false means template fallback). It never returns an error:
// generation problems are logged and absorbed here.
func (c *Composer) Compose(ctx context.Context, message string, verse storage.Verse, label mood.Label) (string, bool) {
	if c.completer == nil {
		return Template(verse, label), false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.completer.Complete(ctx, BuildPrompt(message, verse, label))
	if err != nil {
		slog.Warn("reply generation failed, using template", "error", err, "verse", verse.ID)
		return Template(verse, label), false
	}
	out = strings.TrimSpace(out)
	if out == "" {
		slog.Warn("reply generation returned empty output, using template", "verse", verse.ID)
		return Template(verse, label), false
	}
	return out, true
}
