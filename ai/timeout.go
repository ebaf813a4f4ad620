package ai

import (
	"context"
	"time"
)

// Timeout bounds every Chat call of the wrapped provider.
type Timeout struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout wraps p so each call gets its own deadline. A non-positive
// d returns p unchanged.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &Timeout{next: p, timeout: d}
}

func (t *Timeout) Name() string { return t.next.Name() }

func (t *Timeout) Chat(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Chat(ctx, messages, opts...)
}
