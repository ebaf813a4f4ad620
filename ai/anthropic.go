package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com"

// Anthropic implements the Provider interface for the Anthropic Messages API.
type Anthropic struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

var _ Provider = (*Anthropic)(nil)

// NewAnthropic creates an Anthropic provider.
func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &Anthropic{apiKey: apiKey, model: model, baseURL: defaultAnthropicBaseURL, client: http.DefaultClient}
}

func (a *Anthropic) Name() string {
	return fmt.Sprintf("Anthropic (%s)", a.model)
}

func (a *Anthropic) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	type apiMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	// Anthropic doesn't use "system" role in messages; it's a top-level field.
	system, rest := splitSystem(messages)
	apiMsgs := make([]apiMsg, 0, len(rest))
	for _, m := range rest {
		apiMsgs = append(apiMsgs, apiMsg(m))
	}
	if len(apiMsgs) == 0 {
		return "", fmt.Errorf("anthropic requires at least one user message")
	}

	options := ApplyOptions(opts)
	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body := map[string]any{
		"model":      a.model,
		"max_tokens": maxTokens,
		"system":     system,
		"messages":   apiMsgs,
	}
	if options.Temperature != nil {
		body["temperature"] = *options.Temperature
	}
	if len(options.Stop) > 0 {
		body["stop_sequences"] = options.Stop
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	err := postJSON(ctx, a.client, "anthropic", strings.TrimRight(a.baseURL, "/")+"/v1/messages",
		map[string]string{"x-api-key": a.apiKey, "anthropic-version": "2023-06-01"}, body, &result)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return text.String(), nil
}
