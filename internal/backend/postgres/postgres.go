// Package postgres is the row-store backend, backed by a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	"github.com/KaramelBytes/usageql-cli/internal/catalog"
	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// Kind is the registry name of this backend.
const Kind = "postgres"

func init() {
	backend.Register(Kind, New)
}

// DB implements backend.Backend on Postgres. Tables live in the connection's
// current schema.
type DB struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects to the database named by cfg.DSN.
func New(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
	if cfg.DSN == "" || cfg.DSN == ":memory:" {
		return nil, fmt.Errorf("postgres: a connection string is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &DB{pool: pool, log: log}, nil
}

func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

func pgIdent(id string) string { return pgx.Identifier{id}.Sanitize() }

func columnType(k backend.Kind) string {
	switch k {
	case backend.KindInteger:
		return "BIGINT"
	case backend.KindReal:
		return "DOUBLE PRECISION"
	case backend.KindBool:
		return "BOOLEAN"
	case backend.KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

func createSQL(name string, t *table.Table, kinds []backend.Kind) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(pgIdent(name))
	b.WriteString(" (")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
		b.WriteString(" ")
		b.WriteString(columnType(kinds[i]))
	}
	b.WriteString(")")
	return b.String()
}

// CreateTables replaces every table in one transaction, loading rows with COPY.
func (d *DB) CreateTables(ctx context.Context, tables map[string]*table.Table) error {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, name := range names {
		t := tables[name]
		if t == nil || len(t.Columns) == 0 {
			d.log.Warn("skipping table without columns", zap.String("table", name))
			continue
		}
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgIdent(name)+" CASCADE"); err != nil {
			return fmt.Errorf("drop table %s: %w", name, err)
		}
		kinds := backend.InferKinds(t)
		if _, err := tx.Exec(ctx, createSQL(name, t, kinds)); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
		rows := make([][]any, len(t.Rows))
		for r, row := range t.Rows {
			out := make([]any, len(t.Columns))
			for i := range t.Columns {
				if i < len(row) {
					out[i] = backend.Coerce(row[i], kinds[i])
				}
			}
			rows[r] = out
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{name}, t.Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy into %s: %w", name, err)
		}
		d.log.Info("created table", zap.String("table", name), zap.Int64("rows", n))
	}
	return tx.Commit(ctx)
}

// ExecuteQuery rebinds ? placeholders to $n and materializes the result.
func (d *DB) ExecuteQuery(ctx context.Context, query string, args ...any) (*table.Table, error) {
	rows, err := d.pool.Query(ctx, catalog.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	t, err := collect(rows, "result")
	if err != nil {
		return nil, err
	}
	d.log.Debug("executed query", zap.Int("rows", t.Len()))
	return t, nil
}

func collect(rows pgx.Rows, name string) (*table.Table, error) {
	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	t := table.New(name, cols...)
	t.Rows = [][]any{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		t.Rows = append(t.Rows, vals)
	}
	return t, rows.Err()
}

// normalize maps pgx result values onto table cell types.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, string, int64, float64, bool:
		return v
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case float32:
		return float64(x)
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case time.Time:
		return x.UTC()
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// GetTableSchema reads columns from information_schema.
func (d *DB) GetTableSchema(ctx context.Context, name string) (backend.Schema, error) {
	rows, err := d.pool.Query(ctx, `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`, name)
	if err != nil {
		return backend.Schema{}, err
	}
	defer rows.Close()
	s := backend.Schema{Table: name, Columns: []string{}, Types: []string{}}
	for rows.Next() {
		var col, typ string
		if err := rows.Scan(&col, &typ); err != nil {
			return backend.Schema{}, err
		}
		s.Columns = append(s.Columns, col)
		s.Types = append(s.Types, strings.ToUpper(typ))
	}
	if err := rows.Err(); err != nil {
		return backend.Schema{}, err
	}
	if len(s.Columns) == 0 {
		return backend.Schema{}, fmt.Errorf("%w: %s", backend.ErrNoTable, name)
	}
	return s, nil
}

// GetAllTables lists base tables in the current schema.
func (d *DB) GetAllTables(ctx context.Context) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SampleRows returns the first limit rows of a table.
func (d *DB) SampleRows(ctx context.Context, name string, limit int) (*table.Table, error) {
	if limit <= 0 {
		limit = 5
	}
	if _, err := d.GetTableSchema(ctx, name); err != nil {
		return nil, err
	}
	rows, err := d.pool.Query(ctx, "SELECT * FROM "+pgIdent(name)+" LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows, name)
}
