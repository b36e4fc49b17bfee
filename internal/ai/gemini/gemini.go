// Package gemini talks to the Gemini API. It implements both collaborator
// ports: category suggestions and chat answers.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"fintrack/internal/ai"
)

const (
	DefaultModel = "gemini-2.0-flash"

	// suggestionConfidence is reported for any vocabulary label the model
	// returns; the API exposes no calibrated score.
	suggestionConfidence = 0.9
)

type Client struct {
	client *genai.Client
	model  string
}

// Option adjusts the SDK configuration before the client is built.
type Option func(*genai.ClientConfig)

// WithEndpoint sends requests to baseURL through hc instead of the public API.
func WithEndpoint(baseURL string, hc *http.Client) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = baseURL
		if hc != nil {
			cfg.HTTPClient = hc
		}
	}
}

// New builds a client authenticated with an API key.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("generate content: empty response")
	}
	return text, nil
}

func (c *Client) Suggest(ctx context.Context, text string) (ai.Suggestion, bool, error) {
	if strings.TrimSpace(text) == "" {
		return ai.Suggestion{}, false, nil
	}
	out, err := c.generate(ctx, SuggestionPrompt(text))
	if err != nil {
		return ai.Suggestion{}, false, err
	}
	return ai.Suggestion{Label: ai.Normalize(out), Confidence: suggestionConfidence}, true, nil
}

func (c *Client) Answer(ctx context.Context, question, contextText string) (string, error) {
	return c.generate(ctx, ChatPrompt(question, contextText))
}

// SuggestionPrompt asks for exactly one vocabulary label.
func SuggestionPrompt(text string) string {
	return fmt.Sprintf(`You are a personal finance assistant. Classify the transaction below into exactly ONE of these categories: %s.

Transaction: %q

Reply with the category name only, without explanation. If unsure, reply "%s".`,
		strings.Join(ai.Labels, ", "), text, ai.LabelOther)
}

// ChatPrompt embeds the user's financial context ahead of the question.
func ChatPrompt(question, contextText string) string {
	return fmt.Sprintf(`You are a friendly personal finance assistant. Here is the user's recent financial data:

%s

Rules:
1. Answer the question using the data above when relevant. If the data is not enough, say so politely.
2. Skip filler such as "According to the data".
3. If spending looks high, add a short friendly warning (at most 2 sentences) after a blank line.
4. EXPENSE entries are money spent. TRANSFER entries move money between the user's own wallets.
5. When totalling spending, NEVER include TRANSFER entries. Only EXPENSE entries count.

Question: %q`, contextText, question)
}
