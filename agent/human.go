package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	input "github.com/tcnksm/go-input"
)

// HumanInput answers a question the agent wants to put to the user.
type HumanInput interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// ErrNoHuman is returned when nobody can be asked.
var ErrNoHuman = errors.New("no human is available to answer in this session")

// NoHuman is used where there is no interactive user, such as the HTTP API.
type NoHuman struct{}

func (NoHuman) Ask(context.Context, string) (string, error) { return "", ErrNoHuman }

// TerminalHuman prompts on a terminal.
type TerminalHuman struct {
	ui *input.UI
}

// NewTerminalHuman prompts on w and reads replies from r.
func NewTerminalHuman(w io.Writer, r io.Reader) *TerminalHuman {
	return &TerminalHuman{ui: &input.UI{Writer: w, Reader: r}}
}

func (t *TerminalHuman) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	answer, err := t.ui.Ask(prompt, &input.Options{
		Required:  true,
		HideOrder: true,
	})
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// HumanRequest is a question waiting for the UI to answer it. Exactly one
// value must be sent on Reply.
type HumanRequest struct {
	Prompt string
	Reply  chan HumanReply
}

// HumanReply carries the user's answer, or Err if they declined.
type HumanReply struct {
	Answer string
	Err    error
}

// ChannelHuman hands questions to a UI goroutine through a channel and
// waits for the reply.
type ChannelHuman struct {
	requests chan HumanRequest
}

// NewChannelHuman creates a ChannelHuman. Read questions from Requests.
func NewChannelHuman() *ChannelHuman {
	return &ChannelHuman{requests: make(chan HumanRequest)}
}

// Requests is the channel the UI reads questions from.
func (c *ChannelHuman) Requests() <-chan HumanRequest { return c.requests }

func (c *ChannelHuman) Ask(ctx context.Context, prompt string) (string, error) {
	reply := make(chan HumanReply, 1)
	select {
	case c.requests <- HumanRequest{Prompt: prompt, Reply: reply}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-reply:
		if r.Err != nil {
			return "", r.Err
		}
		return strings.TrimSpace(r.Answer), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
