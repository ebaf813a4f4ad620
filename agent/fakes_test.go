package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DachengChen/shelfcare/ai"
	"github.com/DachengChen/shelfcare/db"
	"github.com/DachengChen/shelfcare/nl2sql"
)

// scriptedModel replays replies in order and keeps every request. Once
// the script runs out the last reply repeats.
type scriptedModel struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests [][]ai.Message
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Chat(_ context.Context, messages []ai.Message, _ ...ai.Option) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, append([]ai.Message(nil), messages...))
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	i := min(len(m.requests)-1, len(m.replies)-1)
	return m.replies[i], nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *scriptedModel) lastMessage(call int) ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	req := m.requests[call]
	return req[len(req)-1]
}

// funcModel answers with a function of the call number.
type funcModel struct {
	mu    sync.Mutex
	n     int
	reply func(n int) string
}

func (m *funcModel) Name() string { return "func" }

func (m *funcModel) Chat(context.Context, []ai.Message, ...ai.Option) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	return m.reply(m.n), nil
}

type fakeInventory struct {
	mu       sync.Mutex
	added    []db.NewProduct
	days     []int
	addErr   error
	overview *db.Overview
}

func (f *fakeInventory) Overview(_ context.Context, days int) (*db.Overview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, days)
	if f.overview == nil {
		return &db.Overview{Days: days, ProductCount: 12, TotalStock: 340, ExpiringQuantity: 25}, nil
	}
	return f.overview, nil
}

func (f *fakeInventory) AddProduct(_ context.Context, p db.NewProduct) (int64, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.added = append(f.added, p)
	return int64(len(f.added)), nil
}

type fakeChain struct {
	answer string
	err    error
	asked  []string
}

func (f *fakeChain) Run(_ context.Context, question string) (*nl2sql.ChainResult, error) {
	f.asked = append(f.asked, question)
	if f.err != nil {
		return nil, f.err
	}
	return &nl2sql.ChainResult{Question: question, Answer: f.answer}, nil
}

type recordingRunLog struct {
	mu   sync.Mutex
	runs []RunRecord
}

func (l *recordingRunLog) SaveRun(_ context.Context, run RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, run)
	return nil
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC) }
