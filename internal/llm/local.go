package llm

import (
	"context"
	"strings"

	"github.com/solacehq/solace/internal/ollama"
)

// Local is a Completer backed by a local Ollama chat model, for running
// without any cloud dependency.
type Local struct {
	client *ollama.Client
	model  string
}

func NewLocal(client *ollama.Client, model string) *Local {
	return &Local{client: client, model: model}
}

func (l *Local) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := l.client.Chat(ctx, l.model, []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
