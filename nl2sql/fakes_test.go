package nl2sql

import (
	"context"
	"errors"
	"sync"

	"github.com/DachengChen/shelfcare/ai"
	"github.com/DachengChen/shelfcare/db"
)

// scriptedModel answers by operation tag: synthesize and rephrase calls
// each get their own reply function.
type scriptedModel struct {
	mu           sync.Mutex
	synthesize   func(prompt string) (string, error)
	rephrase     func(prompt string) (string, error)
	prompts      []string
	operations   []string
	temperatures []*float64
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Chat(ctx context.Context, messages []ai.Message, opts ...ai.Option) (string, error) {
	m.mu.Lock()
	prompt := messages[len(messages)-1].Content
	op := ai.OperationFrom(ctx)
	m.prompts = append(m.prompts, prompt)
	m.operations = append(m.operations, op)
	m.temperatures = append(m.temperatures, ai.ApplyOptions(opts).Temperature)
	m.mu.Unlock()

	switch op {
	case "synthesize":
		if m.synthesize == nil {
			return "", errors.New("no synthesize reply")
		}
		return m.synthesize(prompt)
	case "rephrase":
		if m.rephrase == nil {
			return "", errors.New("no rephrase reply")
		}
		return m.rephrase(prompt)
	}
	return "", errors.New("unexpected operation " + op)
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func fixedSQL(sql string) func(string) (string, error) {
	return func(string) (string, error) { return sql, nil }
}

type recordingExecutor struct {
	mu     sync.Mutex
	calls  []string
	result *db.QueryResult
	err    error
}

func (e *recordingExecutor) Execute(_ context.Context, sql string) (*db.QueryResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, sql)
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

type staticSchema struct {
	text string
	err  error
}

func (s staticSchema) SchemaDescriptor(context.Context, ...string) (string, error) {
	return s.text, s.err
}

type staticSelector struct {
	examples []Example
	err      error
}

func (s staticSelector) Select(_ context.Context, _ string, k int) ([]Example, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.examples[:min(k, len(s.examples))], nil
}

type failingEmbedder struct{}

func (failingEmbedder) Model() string { return "down" }
func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("dial tcp: connection refused")
}
func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("dial tcp: connection refused")
}

// countingEmbedder wraps an embedder and counts batch sizes.
type countingEmbedder struct {
	ai.Embedder
	mu       sync.Mutex
	embedded int
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.embedded += len(texts)
	c.mu.Unlock()
	return c.Embedder.EmbedBatch(ctx, texts)
}

type memoryCache struct {
	mu      sync.Mutex
	vectors map[string][]float32
	saved   int
}

func (m *memoryCache) LoadVectors(_ context.Context, model string, texts []string) (map[string][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]float32{}
	for _, t := range texts {
		if v, ok := m.vectors[model+"|"+t]; ok {
			out[t] = v
		}
	}
	return out, nil
}

func (m *memoryCache) SaveVectors(_ context.Context, model string, vectors map[string][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vectors == nil {
		m.vectors = map[string][]float32{}
	}
	for t, v := range vectors {
		m.vectors[model+"|"+t] = v
		m.saved++
	}
	return nil
}
