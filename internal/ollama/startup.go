package ollama

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady checks that Ollama is up and that the required models are
// available, pulling missing ones with progress written to w. The embedding
// model is mandatory; chatModel may be empty when reply generation uses a
// different backend.
func EnsureReady(ctx context.Context, c *Client, embedModel, chatModel string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("ollama is not running; start it with: ollama serve")
	}

	models := []string{embedModel}
	if chatModel != "" {
		models = append(models, chatModel)
	}
	for _, model := range models {
		if c.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}

		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := c.PullModel(ctx, model, func(p PullProgress) {
			if p.Total > 0 {
				pct := float64(p.Completed) / float64(p.Total) * 100
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
			} else {
				fmt.Fprintf(w, "  %s\n", p.Status)
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}
	return nil
}
