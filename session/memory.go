package session

import (
	"context"
	"sync"
	"time"

	"github.com/DachengChen/shelfcare/agent"
)

// MemoryStore keeps sessions in process. Sessions idle for longer than
// the TTL are dropped on the next access.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	conv    *agent.Conversation
	touched time.Time
}

// NewMemoryStore creates a MemoryStore. A zero ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, sessions: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*agent.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict()
	e, ok := s.sessions[id]
	if !ok {
		return agent.NewConversation(), nil
	}
	return e.conv.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, id string, conv *agent.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = memoryEntry{conv: conv.Clone(), touched: s.now()}
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict()
	return len(s.sessions)
}

func (s *MemoryStore) evict() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.sessions {
		if e.touched.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
