package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAI implements the Provider interface for OpenAI's Chat API and any
// endpoint compatible with it.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

var _ Provider = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI provider. An empty baseURL means the
// public API.
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = "gpt-4o"
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (o *OpenAI) Name() string {
	return fmt.Sprintf("OpenAI (%s)", o.model)
}

func (o *OpenAI) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	msgs := withSystem(messages)
	apiMsgs := make([]chatMsg, 0, len(msgs))
	for _, m := range msgs {
		apiMsgs = append(apiMsgs, chatMsg(m))
	}

	body := map[string]any{
		"model":    o.model,
		"messages": apiMsgs,
	}
	options := ApplyOptions(opts)
	if options.Temperature != nil {
		body["temperature"] = *options.Temperature
	}
	if options.MaxTokens > 0 {
		body["max_tokens"] = options.MaxTokens
	}
	if len(options.Stop) > 0 {
		body["stop"] = options.Stop
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	err := postJSON(ctx, o.client, "openai", o.baseURL+"/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + o.apiKey}, body, &result)
	if err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}
