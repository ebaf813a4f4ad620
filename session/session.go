// Package session keeps HTTP chat conversations between requests.
//
// Design decisions:
//   - A session is just an id and its agent.Conversation; the agent
//     itself stays stateless and shared.
//   - Turns on one session are serialized with a per-session lock, so
//     two requests cannot interleave their user/assistant turns.
//   - Storage is pluggable: in-process memory for a single instance,
//     Redis when several instances serve the same users.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/DachengChen/shelfcare/agent"
	"github.com/google/uuid"
)

// Store loads and saves conversations by session id.
type Store interface {
	// Load returns the conversation for id, or an empty one if the
	// session is unknown or expired.
	Load(ctx context.Context, id string) (*agent.Conversation, error)
	Save(ctx context.Context, id string, conv *agent.Conversation) error
}

// Runner answers one message in a conversation. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, conv *agent.Conversation, input string) *agent.Result
}

// ErrInvalidID is returned for session ids that are not safe to use as keys.
var ErrInvalidID = errors.New("invalid session id")

const maxIDLen = 128

// Manager runs chat turns against stored sessions.
type Manager struct {
	store  Store
	runner Runner
	locks  *keyedMutex
}

// NewManager creates a Manager.
func NewManager(store Store, runner Runner) *Manager {
	return &Manager{store: store, runner: runner, locks: newKeyedMutex()}
}

// Chat runs message in session id, creating a session when id is empty.
// It returns the session id used.
func (m *Manager) Chat(ctx context.Context, id, message string) (string, *agent.Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	} else if !validID(id) {
		return "", nil, ErrInvalidID
	}

	unlock := m.locks.Lock(id)
	defer unlock()

	conv, err := m.store.Load(ctx, id)
	if err != nil {
		return id, nil, err
	}
	res := m.runner.Run(ctx, conv, message)
	if err := m.store.Save(context.WithoutCancel(ctx), id, conv); err != nil {
		return id, res, err
	}
	return id, res, nil
}

// History returns the conversation of session id.
func (m *Manager) History(ctx context.Context, id string) (*agent.Conversation, error) {
	if !validID(id) {
		return nil, ErrInvalidID
	}
	return m.store.Load(ctx, id)
}

func validID(id string) bool {
	if id == "" || len(id) > maxIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// keyedMutex hands out one mutex per key and forgets it once nobody
// holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
