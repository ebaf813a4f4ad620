package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// Gemini implements the Provider interface for Google's Gemini API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

var _ Provider = (*Gemini)(nil)

// NewGemini creates a Gemini provider.
func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{apiKey: apiKey, model: model, baseURL: defaultGeminiBaseURL, client: http.DefaultClient}
}

func (g *Gemini) Name() string {
	return fmt.Sprintf("Gemini (%s)", g.model)
}

func (g *Gemini) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role"`
		Parts []part `json:"parts"`
	}

	system, rest := splitSystem(messages)
	contents := make([]content, 0, len(rest))
	for _, m := range rest {
		role := m.Role
		if role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}

	generation := map[string]any{}
	options := ApplyOptions(opts)
	if options.Temperature != nil {
		generation["temperature"] = *options.Temperature
	}
	if options.MaxTokens > 0 {
		generation["maxOutputTokens"] = options.MaxTokens
	}
	if len(options.Stop) > 0 {
		generation["stopSequences"] = options.Stop
	}

	body := map[string]any{
		"contents":          contents,
		"systemInstruction": map[string]any{"parts": []part{{Text: system}}},
	}
	if len(generation) > 0 {
		body["generationConfig"] = generation
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.baseURL, "/"), url.PathEscape(g.model), url.QueryEscape(g.apiKey))

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := postJSON(ctx, g.client, "gemini", endpoint, nil, body, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content")
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), nil
}
