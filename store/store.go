// Package store is the local SQLite database next to the config: it
// caches example embeddings between runs and keeps a log of agent runs
// and the tool calls they made.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DachengChen/shelfcare/agent"
	"github.com/DachengChen/shelfcare/ai"
	"github.com/DachengChen/shelfcare/nl2sql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

var (
	_ nl2sql.VectorCache = (*Store)(nil)
	_ agent.RunLog       = (*Store)(nil)
)

// DefaultPath is the store file inside the config directory.
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, "shelfcare.db")
}

// Open creates or opens the store at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "store: create directory")
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path))
	if err != nil {
		return nil, errors.Wrap(err, "store: open sqlite")
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS embeddings (
			model TEXT NOT NULL,
			text TEXT NOT NULL,
			dim INTEGER NOT NULL,
			vector BLOB NOT NULL,
			created_at_ms INTEGER NOT NULL,
			PRIMARY KEY (model, text)
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			output TEXT NOT NULL,
			state TEXT NOT NULL,
			error_type TEXT NOT NULL DEFAULT '',
			iterations INTEGER NOT NULL,
			started_at_ms INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tool_invocations (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			tool TEXT NOT NULL,
			input TEXT NOT NULL,
			output TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			started_at_ms INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, step),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS runs_by_started ON runs(started_at_ms DESC);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "store: migrate")
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Embedding cache
// ─────────────────────────────────────────────────────────────────

// LoadVectors returns the cached vectors for texts under model. Missing
// texts are simply absent from the map.
func (s *Store) LoadVectors(ctx context.Context, model string, texts []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	want := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		want[t] = struct{}{}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT text, vector FROM embeddings WHERE model = ?`, model)
	if err != nil {
		return nil, errors.Wrap(err, "load vectors")
	}
	defer rows.Close()

	for rows.Next() {
		var text string
		var blob []byte
		if err := rows.Scan(&text, &blob); err != nil {
			return nil, errors.Wrap(err, "scan vector")
		}
		if _, ok := want[text]; !ok {
			continue
		}
		vec, err := ai.DecodeVector(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "decode vector for %q", text)
		}
		out[text] = vec
	}
	return out, errors.Wrap(rows.Err(), "iterate vectors")
}

// SaveVectors upserts vectors under model in one transaction.
func (s *Store) SaveVectors(ctx context.Context, model string, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for text, vec := range vectors {
		blob, err := ai.EncodeVector(vec)
		if err != nil {
			return errors.Wrapf(err, "encode vector for %q", text)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO embeddings(model, text, dim, vector, created_at_ms) VALUES(?,?,?,?,?)`,
			model, text, len(vec), blob, now,
		); err != nil {
			return errors.Wrap(err, "insert vector")
		}
	}
	return errors.Wrap(tx.Commit(), "commit vectors")
}

// ─────────────────────────────────────────────────────────────────
// Run log
// ─────────────────────────────────────────────────────────────────

// SaveRun stores a finished run and its tool calls.
func (s *Store) SaveRun(ctx context.Context, run agent.RunRecord) error {
	if run.ID == "" {
		return errors.New("save run: empty run id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs(id, question, output, state, error_type, iterations, started_at_ms, duration_ms) VALUES(?,?,?,?,?,?,?,?)`,
		run.ID, run.Question, run.Output, run.State.String(), run.ErrorType, run.Iterations,
		run.Started.UnixMilli(), run.Duration.Milliseconds(),
	); err != nil {
		return errors.Wrap(err, "insert run")
	}
	for _, inv := range run.Invocations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tool_invocations(run_id, step, tool, input, output, error, started_at_ms, duration_ms) VALUES(?,?,?,?,?,?,?,?)`,
			run.ID, inv.Step, inv.Tool, inv.Input, inv.Output, inv.Err,
			inv.Started.UnixMilli(), inv.Duration.Milliseconds(),
		); err != nil {
			return errors.Wrapf(err, "insert tool invocation %d", inv.Step)
		}
	}
	return errors.Wrap(tx.Commit(), "commit run")
}

// RecentRuns returns up to limit runs, newest first, with their tool calls.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]agent.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, output, state, error_type, iterations, started_at_ms, duration_ms
		 FROM runs ORDER BY started_at_ms DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	var runs []agent.RunRecord
	for rows.Next() {
		var (
			r                agent.RunRecord
			state            string
			startedMs, durMs int64
		)
		if err := rows.Scan(&r.ID, &r.Question, &r.Output, &state, &r.ErrorType, &r.Iterations, &startedMs, &durMs); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan run")
		}
		r.State = parseState(state)
		r.Started = time.UnixMilli(startedMs)
		r.Duration = time.Duration(durMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "iterate runs")
	}
	rows.Close()

	for i := range runs {
		invs, err := s.invocations(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Invocations = invs
	}
	return runs, nil
}

func (s *Store) invocations(ctx context.Context, runID string) ([]agent.ToolInvocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, tool, input, output, error, started_at_ms, duration_ms
		 FROM tool_invocations WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query tool invocations")
	}
	defer rows.Close()

	var out []agent.ToolInvocation
	for rows.Next() {
		inv := agent.ToolInvocation{RunID: runID}
		var startedMs, durMs int64
		if err := rows.Scan(&inv.Step, &inv.Tool, &inv.Input, &inv.Output, &inv.Err, &startedMs, &durMs); err != nil {
			return nil, errors.Wrap(err, "scan tool invocation")
		}
		inv.Started = time.UnixMilli(startedMs)
		inv.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, inv)
	}
	return out, errors.Wrap(rows.Err(), "iterate tool invocations")
}

func parseState(s string) agent.State {
	for _, st := range []agent.State{agent.StateIdle, agent.StateAwaitingModel, agent.StateToolDispatch, agent.StateDone, agent.StateFailed} {
		if st.String() == s {
			return st
		}
	}
	return agent.StateIdle
}
