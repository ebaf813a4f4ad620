// logger.go records ALL language-model interactions.
//
// Every request and response goes to the "ai" component log with the
// operation that issued it (synthesize, rephrase, agent step), prompt
// and completion token counts, and latency. Full message bodies are
// logged at debug level in the same boxed layout the log has always
// used, so a transcript can be read straight from app.log.
package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/weaviate/tiktoken-go"
)

type operationKey struct{}

// WithOperation tags ctx with the name of the step making model calls.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFrom returns the tag set by WithOperation, or "chat".
func OperationFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "chat"
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens estimates the token length of text with the cl100k_base
// encoding, falling back to a chars/4 estimate when the encoding is
// unavailable.
func CountTokens(text string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	if enc == nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// Logged decorates a Provider with request/response logging.
type Logged struct {
	next   Provider
	logger zerolog.Logger
}

var _ Provider = (*Logged)(nil)

// WithLogging wraps p so every call is logged to logger.
func WithLogging(p Provider, logger zerolog.Logger) *Logged {
	return &Logged{next: p, logger: logger.With().Str("component", "ai").Logger()}
}

func (l *Logged) Name() string { return l.next.Name() }

func (l *Logged) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	op := OperationFrom(ctx)
	promptTokens := 0
	for _, m := range messages {
		promptTokens += CountTokens(m.Content)
	}

	l.logger.Info().
		Str("op", op).
		Str("provider", l.next.Name()).
		Int("messages", len(messages)).
		Int("prompt_tokens", promptTokens).
		Msg("ai request")
	if e := l.logger.Debug(); e.Enabled() {
		e.Str("op", op).Msg(formatRequest(op, l.next.Name(), messages))
	}

	start := time.Now()
	reply, err := l.next.Chat(ctx, messages, opts...)
	elapsed := time.Since(start)

	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.WarnLevel
	}
	l.logger.WithLevel(level).
		Err(err).
		Str("op", op).
		Int("completion_tokens", CountTokens(reply)).
		Dur("elapsed", elapsed).
		Msg("ai response")
	if err == nil {
		if e := l.logger.Debug(); e.Enabled() {
			e.Str("op", op).Msg(formatResponse(op, reply))
		}
	}
	return reply, err
}

func formatRequest(op, provider string, messages []Message) string {
	var sb strings.Builder
	sb.WriteString("════════════════════════════════════════════════════════════════\n")
	fmt.Fprintf(&sb, "[REQUEST]  Op: %s  |  Provider: %s\n", op, provider)
	sb.WriteString("════════════════════════════════════════════════════════════════\n")
	for _, m := range messages {
		fmt.Fprintf(&sb, "%s:\n%s\n────────────────────────────────────────\n", m.Role, m.Content)
	}
	return sb.String()
}

func formatResponse(op, reply string) string {
	return fmt.Sprintf("[RESPONSE]  Op: %s\n"+
		"────────────────────────────────────────\n"+
		"%s\n"+
		"════════════════════════════════════════════════════════════════\n", op, reply)
}
