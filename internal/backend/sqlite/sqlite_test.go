package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	"github.com/KaramelBytes/usageql-cli/internal/table"
)

func openTest(t *testing.T) *backend.Serialized {
	t.Helper()
	b, err := backend.Open(context.Background(), backend.Config{Kind: Kind, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func plansFixture() *table.Table {
	p := table.New("plans", "customer_id", "plan_name", "average_monthly_revenue", "months_since_active", "advanced_api_access", "start_date")
	p.Append("C1", "Pro", 1200.5, int64(4), true, time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC))
	p.Append("C2", "Basic", int64(80), int64(30), false, nil)
	p.Append("C3", nil, nil, nil, nil, nil)
	return p
}

func TestCreateAndQuery(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	if err := b.CreateTables(ctx, map[string]*table.Table{"plans": plansFixture()}); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
	res, err := b.ExecuteQuery(ctx,
		"SELECT customer_id, average_monthly_revenue, advanced_api_access, start_date FROM plans WHERE average_monthly_revenue > ? ORDER BY average_monthly_revenue DESC", 50)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if res.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", res.Len())
	}
	if res.Value(0, "customer_id") != "C1" || res.Value(0, "average_monthly_revenue") != 1200.5 {
		t.Fatalf("unexpected first row: %v", res.Rows[0])
	}
	// integer widened to real in a mixed column
	if res.Value(1, "average_monthly_revenue") != 80.0 {
		t.Fatalf("expected 80.0, got %#v", res.Value(1, "average_monthly_revenue"))
	}
	if res.Value(0, "advanced_api_access") != int64(1) || res.Value(0, "start_date") != "2022-01-02" {
		t.Fatalf("flag/date storage: %v", res.Rows[0])
	}
}

func TestCreateTablesReplaces(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	if err := b.CreateTables(ctx, map[string]*table.Table{"plans": plansFixture()}); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
	small := table.New("plans", "customer_id")
	small.Append("Z9")
	if err := b.CreateTables(ctx, map[string]*table.Table{"plans": small}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	res, err := b.ExecuteQuery(ctx, "SELECT * FROM plans")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if res.Len() != 1 || len(res.Columns) != 1 {
		t.Fatalf("table not replaced: %v %v", res.Columns, res.Rows)
	}
}

func TestSchemaTablesAndSample(t *testing.T) {
	ctx := context.Background()
	b := openTest(t)
	empty := table.New("nothing")
	if err := b.CreateTables(ctx, map[string]*table.Table{"plans": plansFixture(), "nothing": empty}); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
	names, err := b.GetAllTables(ctx)
	if err != nil {
		t.Fatalf("GetAllTables: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"plans"}) {
		t.Fatalf("tables: %v", names)
	}
	s, err := b.GetTableSchema(ctx, "plans")
	if err != nil {
		t.Fatalf("GetTableSchema: %v", err)
	}
	wantTypes := []string{"TEXT", "TEXT", "REAL", "INTEGER", "INTEGER", "TEXT"}
	if !reflect.DeepEqual(s.Types, wantTypes) || s.Columns[2] != "average_monthly_revenue" {
		t.Fatalf("schema: %+v", s)
	}
	if _, err := b.GetTableSchema(ctx, "missing"); !errors.Is(err, backend.ErrNoTable) {
		t.Fatalf("expected ErrNoTable, got %v", err)
	}
	sample, err := b.SampleRows(ctx, "plans", 2)
	if err != nil {
		t.Fatalf("SampleRows: %v", err)
	}
	if sample.Len() != 2 || sample.Name != "plans" {
		t.Fatalf("sample: %v", sample.Rows)
	}
}

func TestExecuteQueryError(t *testing.T) {
	b := openTest(t)
	_, err := b.ExecuteQuery(context.Background(), "SELECT * FROM nope")
	var ee *backend.ExecError
	if !errors.As(err, &ee) || ee.SQL != "SELECT * FROM nope" {
		t.Fatalf("expected ExecError, got %v", err)
	}
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := backend.Open(context.Background(), backend.Config{Kind: "oracle"})
	if !errors.Is(err, backend.ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
}
