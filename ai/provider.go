// Package ai defines the interface for language-model providers, the
// embedding backends used for example retrieval, and an offline
// placeholder implementation.
//
// Design decisions:
//   - Provider is an interface so the chain and the agent never know
//     which backend (OpenAI, Anthropic, Gemini, Ollama) answers them.
//   - All methods accept context for cancellation and per-call timeouts.
//   - Sampling knobs travel as functional options; a backend ignores the
//     ones its API has no equivalent for.
//   - The placeholder provider returns canned responses for development.
package ai

import (
	"context"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Provider is the interface all language-model backends implement.
type Provider interface {
	// Chat sends a conversation and returns the assistant's reply.
	// Calls are non-streaming.
	Chat(ctx context.Context, messages []Message, opts ...Option) (string, error)

	// Name returns the provider name for display.
	Name() string
}

// Options are the sampling parameters of one call.
type Options struct {
	Temperature *float64
	MaxTokens   int
	Stop        []string
}

// Option mutates Options.
type Option func(*Options)

// WithTemperature pins the sampling temperature. Zero is meaningful.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = &t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithStop sets stop sequences.
func WithStop(stop ...string) Option {
	return func(o *Options) { o.Stop = append([]string(nil), stop...) }
}

// ApplyOptions folds opts into an Options value.
func ApplyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// splitSystem separates the system prompt from the rest of the
// conversation, for APIs that take it as a top-level field. The last
// system message wins; DefaultSystemPrompt is used when there is none.
func splitSystem(messages []Message) (string, []Message) {
	system := DefaultSystemPrompt
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// withSystem returns messages with DefaultSystemPrompt prepended when the
// conversation carries no system message of its own.
func withSystem(messages []Message) []Message {
	for _, m := range messages {
		if m.Role == RoleSystem {
			return messages
		}
	}
	return append([]Message{{Role: RoleSystem, Content: DefaultSystemPrompt}}, messages...)
}
