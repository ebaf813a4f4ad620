package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Placeholder is an offline provider for development. It always answers
// in the agent's final-answer format so the chat loop completes without
// a real backend.
type Placeholder struct {
	delay time.Duration
}

var _ Provider = (*Placeholder)(nil)

func NewPlaceholder() *Placeholder {
	return &Placeholder{delay: 300 * time.Millisecond}
}

func (p *Placeholder) Name() string {
	return "placeholder"
}

func (p *Placeholder) Chat(ctx context.Context, messages []Message, _ ...Option) (string, error) {
	// Simulate network latency
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	asked := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			asked = truncate(messages[i].Content, 80)
			break
		}
	}

	answer := fmt.Sprintf("You asked: %q. This is a placeholder response. "+
		"Configure a real AI provider (OpenAI, Anthropic, Gemini, Ollama) to query the pharmacy database.", asked)
	reply, err := json.Marshal(map[string]string{"action": "Final Answer", "action_input": answer})
	if err != nil {
		return "", err
	}
	return string(reply), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
