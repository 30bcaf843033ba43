// Package llm abstracts the text-generation backend behind a single-method
// Completer. The engine treats generation as opaque: one bounded attempt, and
// any failure degrades to a template reply upstream.
package llm

import "context"

// Completer produces a reply for a prompt. Implementations must respect ctx
// cancellation; the caller bounds every call with a timeout and never retries.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// systemPrompt frames every completion request, whatever the backend.
const systemPrompt = "You are a compassionate spiritual AI companion. Provide warm, empathetic responses that explain verses and offer comfort."
