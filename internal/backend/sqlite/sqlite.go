// Package sqlite is the default backend: an embedded SQLite database via
// modernc.org/sqlite, in memory unless a file DSN is configured.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// Kind is the registry name of this backend.
const Kind = "sqlite"

// maxVariables stays below SQLite's bound-parameter limit per statement.
const maxVariables = 32000

func init() {
	backend.Register(Kind, New)
}

// DB implements backend.Backend on SQLite.
type DB struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens the SQLite database named by cfg.DSN (default ":memory:").
func New(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &DB{db: db, log: log}, nil
}

func (d *DB) Close() error { return d.db.Close() }

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func columnType(k backend.Kind) string {
	switch k {
	case backend.KindInteger, backend.KindBool:
		return "INTEGER"
	case backend.KindReal:
		return "REAL"
	default:
		// dates are stored as ISO text
		return "TEXT"
	}
}

// storeValue converts a coerced cell to the value SQLite stores.
func storeValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return v
	}
}

// CreateTables replaces every table in a single transaction.
func (d *DB) CreateTables(ctx context.Context, tables map[string]*table.Table) error {
	names := make([]string, 0, len(tables))
	for n := range tables {
		names = append(names, n)
	}
	sort.Strings(names)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range names {
		t := tables[name]
		if t == nil || len(t.Columns) == 0 {
			d.log.Warn("skipping table without columns", zap.String("table", name))
			continue
		}
		if err := createTable(ctx, tx, name, t); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
		d.log.Info("created table", zap.String("table", name), zap.Int("rows", t.Len()))
	}
	return tx.Commit()
}

func createTable(ctx context.Context, tx *sql.Tx, name string, t *table.Table) error {
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(name)); err != nil {
		return err
	}
	kinds := backend.InferKinds(t)
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(sqlIdent(name))
	b.WriteString(" (")
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
		b.WriteString(" ")
		b.WriteString(columnType(kinds[i]))
	}
	b.WriteString(")")
	if _, err := tx.ExecContext(ctx, b.String()); err != nil {
		return err
	}

	batch := maxVariables / len(t.Columns)
	if batch < 1 {
		batch = 1
	}
	if batch > 500 {
		batch = 500
	}
	for start := 0; start < len(t.Rows); start += batch {
		end := start + batch
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		if err := insertRows(ctx, tx, name, t.Columns, kinds, t.Rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, name string, columns []string, kinds []backend.Kind, rows [][]any) error {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(name))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")
	ph := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for r, row := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ph)
		for i := range columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			args = append(args, storeValue(backend.Coerce(v, kinds[i])))
		}
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	return err
}

// ExecuteQuery runs sql and materializes the result set.
func (d *DB) ExecuteQuery(ctx context.Context, query string, args ...any) (*table.Table, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	t, err := scanTable(rows, "result")
	if err != nil {
		return nil, err
	}
	d.log.Debug("executed query", zap.Int("rows", t.Len()))
	return t, nil
}

func scanTable(rows *sql.Rows, name string) (*table.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := table.New(name, cols...)
	t.Rows = [][]any{}
	for rows.Next() {
		out := make([]any, len(cols))
		dests := make([]any, len(cols))
		for i := range out {
			dests[i] = &out[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		for i, v := range out {
			if b, ok := v.([]byte); ok {
				out[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, out)
	}
	return t, rows.Err()
}

// GetTableSchema reads column names and declared types.
func (d *DB) GetTableSchema(ctx context.Context, name string) (backend.Schema, error) {
	rows, err := d.db.QueryContext(ctx, "PRAGMA table_info("+sqlIdent(name)+")")
	if err != nil {
		return backend.Schema{}, err
	}
	defer rows.Close()
	s := backend.Schema{Table: name, Columns: []string{}, Types: []string{}}
	for rows.Next() {
		var (
			cid     int
			col     string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &col, &typ, &notNull, &dflt, &pk); err != nil {
			return backend.Schema{}, err
		}
		s.Columns = append(s.Columns, col)
		s.Types = append(s.Types, typ)
	}
	if err := rows.Err(); err != nil {
		return backend.Schema{}, err
	}
	if len(s.Columns) == 0 {
		return backend.Schema{}, fmt.Errorf("%w: %s", backend.ErrNoTable, name)
	}
	return s, nil
}

// GetAllTables lists user tables, sorted by name.
func (d *DB) GetAllTables(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
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
	rows, err := d.db.QueryContext(ctx, "SELECT * FROM "+sqlIdent(name)+" LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTable(rows, name)
}
