package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultXAIURL is the xAI chat-completions endpoint.
const DefaultXAIURL = "https://api.x.ai/v1/chat/completions"

// XAI is a Completer backed by the xAI (Grok) chat-completions API.
type XAI struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewXAI creates an xAI completer. apiURL may be empty to use DefaultXAIURL.
func NewXAI(apiURL, apiKey, model string) *XAI {
	if apiURL == "" {
		apiURL = DefaultXAIURL
	}
	return &XAI{
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

type xaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type xaiRequest struct {
	Model       string       `json:"model"`
	Messages    []xaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
	TopP        float64      `json:"top_p"`
}

type xaiResponse struct {
	Choices []struct {
		Message xaiMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat-completion request. The caller's context carries
// the deadline; there is no retry.
func (x *XAI) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(xaiRequest{
		Model: x.model,
		Messages: []xaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   200,
		Temperature: 0.7,
		TopP:        0.9,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+x.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion: status %d: %s", resp.StatusCode, detail)
	}

	var result xaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("completion: no choices in response")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
