// query.go runs model-generated SQL inside a transaction.
//
// Every statement gets its own transaction: commit on success, rollback
// on any driver error, and the connection goes back to the pool either
// way. Results are returned as produced by the driver; reshaping for
// people is the caller's job.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// QueryResult holds the output of an arbitrary SQL statement.
type QueryResult struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
	Status       string // e.g. "(3 rows)", "(1 row affected)"
}

// ExecutionError carries the driver's message for a failed statement.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %q: %v", e.SQL, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Execute runs a single statement and returns its rows or affected count.
// It never retries.
func (d *DB) Execute(ctx context.Context, query string) (*QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ExecutionError{SQL: query, Err: errors.New("empty query")}
	}

	start := time.Now()
	tx, err := d.SQL.BeginTx(ctx, nil)
	if err != nil {
		return nil, &ExecutionError{SQL: query, Err: err}
	}

	var result *QueryResult
	if returnsRows(query) {
		result, err = collectRows(ctx, tx, query)
	} else {
		result, err = execStatement(ctx, tx, query)
	}
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error().Err(rbErr).Msg("rollback")
		}
		d.logger.Warn().Err(err).Str("sql", query).Msg("statement failed")
		return nil, &ExecutionError{SQL: query, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, &ExecutionError{SQL: query, Err: err}
	}

	d.logger.Debug().
		Str("sql", query).
		Str("status", result.Status).
		Dur("elapsed", time.Since(start)).
		Msg("statement committed")
	return result, nil
}

func collectRows(ctx context.Context, tx *sql.Tx, query string) (*QueryResult, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Columns: cols}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	n := len(result.Rows)
	result.Status = fmt.Sprintf("(%d row%s)", n, plural(n))
	return result, nil
}

func execStatement(ctx context.Context, tx *sql.Tx, query string) (*QueryResult, error) {
	res, err := tx.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return &QueryResult{
		RowsAffected: affected,
		Status:       fmt.Sprintf("(%d row%s affected)", affected, plural(int(affected))),
	}, nil
}

// returnsRows decides between the query and exec paths.
func returnsRows(query string) bool {
	upper := strings.ToUpper(strings.TrimLeft(query, "( \t\n"))
	for _, kw := range []string{"SELECT", "WITH", "VALUES", "TABLE", "SHOW", "EXPLAIN"} {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return strings.Contains(upper, " RETURNING ")
}

// normalizeValue turns driver values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

// Records returns the rows as column-name keyed maps.
func (r *QueryResult) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Text renders the result for a language model: JSON records for row
// results, the status line for commands.
func (r *QueryResult) Text() string {
	if len(r.Columns) == 0 {
		return r.Status
	}
	if len(r.Rows) == 0 {
		return "[] " + r.Status
	}
	data, err := json.Marshal(r.Records())
	if err != nil {
		return r.Status
	}
	return string(data)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
