package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DachengChen/shelfcare/agent"
	"github.com/DachengChen/shelfcare/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoRunner appends turns the way agent.Agent does.
type echoRunner struct{}

func (echoRunner) Run(_ context.Context, conv *agent.Conversation, input string) *agent.Result {
	// Yield between the two appends so unsynchronized runs would interleave.
	conv.Append(ai.RoleUser, input)
	time.Sleep(time.Millisecond)
	out := "re: " + input
	conv.Append(ai.RoleAssistant, out)
	return &agent.Result{Output: out, State: agent.StateDone}
}

func TestManagerCreatesSession(t *testing.T) {
	m := NewManager(NewMemoryStore(0), echoRunner{})

	id, res, err := m.Chat(context.Background(), "", "What stock is running low?")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "re: What stock is running low?", res.Output)

	_, _, err = m.Chat(context.Background(), id, "And what expires soon?")
	require.NoError(t, err)

	conv, err := m.History(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 4, conv.Len())
	assert.Equal(t, "And what expires soon?", conv.Turns[2].Content)
}

func TestManagerRejectsBadIDs(t *testing.T) {
	m := NewManager(NewMemoryStore(0), echoRunner{})
	for _, id := range []string{"../etc", "a b", "x:y", string(make([]byte, maxIDLen+1))} {
		_, _, err := m.Chat(context.Background(), id, "hello there")
		assert.ErrorIs(t, err, ErrInvalidID, id)
	}
}

func TestManagerSerializesTurnsPerSession(t *testing.T) {
	store := NewMemoryStore(0)
	m := NewManager(store, echoRunner{})
	const n = 10

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := m.Chat(context.Background(), "shared", fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	conv, err := m.History(context.Background(), "shared")
	require.NoError(t, err)
	require.Equal(t, 2*n, conv.Len())
	for i := 0; i < conv.Len(); i += 2 {
		assert.Equal(t, ai.RoleUser, conv.Turns[i].Role)
		assert.Equal(t, "re: "+conv.Turns[i].Content, conv.Turns[i+1].Content)
	}
	assert.Zero(t, m.locks.size())
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	s := NewMemoryStore(0)
	conv := agent.NewConversation()
	conv.Append(ai.RoleUser, "hello")
	require.NoError(t, s.Save(context.Background(), "a", conv))

	conv.Append(ai.RoleAssistant, "not saved")
	loaded, err := s.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())

	empty, err := s.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Save(context.Background(), "a", agent.NewConversation()))
	assert.Equal(t, 1, s.Len())

	now = now.Add(61 * time.Minute)
	assert.Zero(t, s.Len())
}

func TestDecodeConversation(t *testing.T) {
	conv, err := decodeConversation([]byte(`{"turns":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []agent.Turn{{Role: "user", Content: "hi"}}, conv.Turns)

	_, err = decodeConversation([]byte(`{`))
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("SHELFCARE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SHELFCARE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, url, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	id := fmt.Sprintf("test-%d", time.Now().UnixNano())
	conv := agent.NewConversation()
	conv.Append(ai.RoleUser, "What stock is running low?")
	conv.Append(ai.RoleAssistant, "Ibuprofen.")
	require.NoError(t, s.Save(ctx, id, conv))

	loaded, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, conv.Turns, loaded.Turns)

	missing, err := s.Load(ctx, id+"-missing")
	require.NoError(t, err)
	assert.Zero(t, missing.Len())
}

func TestNewRedisStoreBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not a url", time.Minute)
	assert.ErrorContains(t, err, "parse redis url")
}
