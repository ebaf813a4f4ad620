// schema.go introspects the live schema and renders it as the schema
// descriptor injected into SQL-generation prompts.
//
// For each table it gathers:
//   - Column definitions (name, type, nullable, default, PK)
//   - Foreign key relationships (outgoing)
//   - A few sample rows, so the model sees real value formats
package db

import (
	"context"
	"fmt"
	"strings"

	pgx "github.com/jackc/pgx/v5"
)

// DefaultTables are the tables the assistant is allowed to query.
var DefaultTables = []string{"products", "orders", "expiry"}

// SampleRows is how many example rows each table contributes.
const SampleRows = 3

// ColumnInfo describes a single column in a table.
type ColumnInfo struct {
	Name       string
	DataType   string
	IsNullable bool
	Default    string
	IsPK       bool
}

// ForeignKeyInfo describes a foreign key constraint.
type ForeignKeyInfo struct {
	ConstraintName string
	Column         string
	ForeignTable   string
	ForeignColumn  string
}

// TableSchema holds complete schema information for a table.
type TableSchema struct {
	Name        string
	Columns     []ColumnInfo
	ForeignKeys []ForeignKeyInfo
	Sample      *QueryResult
}

const columnsQuery = `
SELECT c.column_name, c.data_type, c.is_nullable, COALESCE(c.column_default, ''),
       EXISTS (
         SELECT 1 FROM information_schema.table_constraints tc
         JOIN information_schema.key_column_usage k
           ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
         WHERE tc.constraint_type = 'PRIMARY KEY'
           AND tc.table_schema = c.table_schema
           AND tc.table_name = c.table_name
           AND k.column_name = c.column_name
       ) AS is_pk
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

const foreignKeysQuery = `
SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND tc.table_name = $2
ORDER BY kcu.column_name`

// FetchTableSchema retrieves columns, foreign keys and sample rows for a table.
func (d *DB) FetchTableSchema(ctx context.Context, schema, table string) (*TableSchema, error) {
	if schema == "" {
		schema = "public"
	}
	ts := &TableSchema{Name: table}

	rows, err := d.SQL.QueryContext(ctx, columnsQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	for rows.Next() {
		var col ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &col.Default, &col.IsPK); err != nil {
			rows.Close()
			return nil, fmt.Errorf("describe %s: %w", table, err)
		}
		col.IsNullable = nullable == "YES"
		ts.Columns = append(ts.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	if len(ts.Columns) == 0 {
		return nil, fmt.Errorf("describe %s: table not found in schema %s", table, schema)
	}

	fkRows, err := d.SQL.QueryContext(ctx, foreignKeysQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}
	for fkRows.Next() {
		var fk ForeignKeyInfo
		if err := fkRows.Scan(&fk.ConstraintName, &fk.Column, &fk.ForeignTable, &fk.ForeignColumn); err != nil {
			fkRows.Close()
			return nil, fmt.Errorf("foreign keys %s: %w", table, err)
		}
		ts.ForeignKeys = append(ts.ForeignKeys, fk)
	}
	fkRows.Close()
	if err := fkRows.Err(); err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}

	sample, err := d.sampleRows(ctx, schema, table)
	if err != nil {
		// The descriptor is still useful without samples.
		d.logger.Warn().Err(err).Str("table", table).Msg("sample rows")
	}
	ts.Sample = sample
	return ts, nil
}

func (d *DB) sampleRows(ctx context.Context, schema, table string) (*QueryResult, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", pgx.Identifier{schema, table}.Sanitize(), SampleRows)
	rows, err := d.SQL.QueryContext(ctx, query)
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
	return result, rows.Err()
}

// SchemaDescriptor introspects the given tables (DefaultTables when none
// are named) and renders them for a prompt.
func (d *DB) SchemaDescriptor(ctx context.Context, tables ...string) (string, error) {
	if len(tables) == 0 {
		tables = DefaultTables
	}
	schemas := make([]*TableSchema, 0, len(tables))
	for _, t := range tables {
		ts, err := d.FetchTableSchema(ctx, "public", t)
		if err != nil {
			return "", err
		}
		schemas = append(schemas, ts)
	}
	return FormatSchemaContext(schemas), nil
}

// FormatSchemaContext renders tables as CREATE TABLE statements followed
// by their sample rows.
func FormatSchemaContext(tables []*TableSchema) string {
	var sb strings.Builder

	for i, ts := range tables {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "CREATE TABLE %q (\n", ts.Name)

		var lines []string
		var pk []string
		for _, col := range ts.Columns {
			line := fmt.Sprintf("\t%q %s", col.Name, col.DataType)
			if !col.IsNullable {
				line += " NOT NULL"
			}
			if col.Default != "" {
				line += " DEFAULT " + col.Default
			}
			lines = append(lines, line)
			if col.IsPK {
				pk = append(pk, fmt.Sprintf("%q", col.Name))
			}
		}
		if len(pk) > 0 {
			lines = append(lines, "\tPRIMARY KEY ("+strings.Join(pk, ", ")+")")
		}
		for _, fk := range ts.ForeignKeys {
			lines = append(lines, fmt.Sprintf("\tFOREIGN KEY (%q) REFERENCES %q (%q)",
				fk.Column, fk.ForeignTable, fk.ForeignColumn))
		}
		sb.WriteString(strings.Join(lines, ",\n"))
		sb.WriteString("\n)")

		if ts.Sample != nil && len(ts.Sample.Rows) > 0 {
			fmt.Fprintf(&sb, "\n\n/*\n%d rows from %s table:\n", len(ts.Sample.Rows), ts.Name)
			sb.WriteString(strings.Join(ts.Sample.Columns, "\t"))
			sb.WriteString("\n")
			for _, row := range ts.Sample.Rows {
				cells := make([]string, len(row))
				for j, v := range row {
					if v == nil {
						cells[j] = "NULL"
					} else {
						cells[j] = fmt.Sprintf("%v", v)
					}
				}
				sb.WriteString(strings.Join(cells, "\t"))
				sb.WriteString("\n")
			}
			sb.WriteString("*/")
		}
	}

	return sb.String()
}
