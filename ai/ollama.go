package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const defaultOllamaHost = "http://localhost:11434"

// Ollama implements the Provider interface for local Ollama instances.
type Ollama struct {
	host   string
	model  string
	client *http.Client
}

var _ Provider = (*Ollama)(nil)

// NewOllama creates an Ollama provider.
func NewOllama(host, model string) *Ollama {
	if host == "" {
		host = defaultOllamaHost
	}
	if model == "" {
		model = "llama3.2"
	}
	return &Ollama{host: strings.TrimRight(host, "/"), model: model, client: http.DefaultClient}
}

func (o *Ollama) Name() string {
	return fmt.Sprintf("Ollama (%s)", o.model)
}

func (o *Ollama) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
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
		"stream":   false,
	}
	modelOpts := map[string]any{}
	options := ApplyOptions(opts)
	if options.Temperature != nil {
		modelOpts["temperature"] = *options.Temperature
	}
	if options.MaxTokens > 0 {
		modelOpts["num_predict"] = options.MaxTokens
	}
	if len(options.Stop) > 0 {
		modelOpts["stop"] = options.Stop
	}
	if len(modelOpts) > 0 {
		body["options"] = modelOpts
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := postJSON(ctx, o.client, "ollama", o.host+"/api/chat", nil, body, &result); err != nil {
		return "", fmt.Errorf("%w (is Ollama running at %s?)", err, o.host)
	}

	if result.Message.Content == "" {
		return "", fmt.Errorf("ollama returned empty response")
	}
	return result.Message.Content, nil
}
