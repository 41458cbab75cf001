package postgres

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	"github.com/KaramelBytes/usageql-cli/internal/table"
)

func TestCreateSQL(t *testing.T) {
	tb := table.New("plans", "customer_id", "revenue", "months", "flag", "start", `odd"name`)
	tb.Append("C1", 1.5, int64(3), true, time.Now(), nil)
	got := createSQL("plans", tb, backend.InferKinds(tb))
	want := `CREATE TABLE "plans" ("customer_id" TEXT, "revenue" DOUBLE PRECISION, "months" BIGINT, "flag" BOOLEAN, "start" DATE, "odd""name" TEXT)`
	if got != want {
		t.Fatalf("createSQL:\n got %s\nwant %s", got, want)
	}
}

func TestNormalize(t *testing.T) {
	num := pgtype.Numeric{Int: big.NewInt(42), Exp: 0, Valid: true}
	cases := []struct {
		in   any
		want any
	}{
		{int32(7), int64(7)},
		{int16(2), int64(2)},
		{float32(0.5), 0.5},
		{num, 42.0},
		{pgtype.Numeric{}, nil},
		{[]byte("x"), "x"},
		{"s", "s"},
		{nil, nil},
	}
	for _, tc := range cases {
		if got := normalize(tc.in); got != tc.want {
			t.Fatalf("normalize(%#v) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), backend.Config{DSN: ":memory:"}); err == nil {
		t.Fatalf("expected error for in-memory DSN")
	}
}

// Runs only when USAGEQL_TEST_POSTGRES_DSN points at a scratch database.
func TestRoundTripLive(t *testing.T) {
	dsn := os.Getenv("USAGEQL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("USAGEQL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	b, err := backend.Open(ctx, backend.Config{Kind: Kind, DSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()
	tb := table.New("usageql_test_plans", "customer_id", "average_monthly_revenue", "advanced_api_access")
	tb.Append("C1", 10.0, true)
	tb.Append("C2", 20.0, false)
	if err := b.CreateTables(ctx, map[string]*table.Table{tb.Name: tb}); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
	res, err := b.ExecuteQuery(ctx,
		"SELECT customer_id, ROUND(CAST(AVG(average_monthly_revenue) AS NUMERIC), 2) AS avg_rev FROM usageql_test_plans WHERE customer_id <> ? GROUP BY customer_id", "C2")
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if res.Len() != 1 || res.Value(0, "avg_rev") != 10.0 {
		t.Fatalf("unexpected result: %v", res.Rows)
	}
}
