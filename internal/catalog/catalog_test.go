package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestGetBindsParams(t *testing.T) {
	p := DefaultParams()
	p.Limit = 5
	q, err := Get(AtRiskCustomers, p)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if q.Name != AtRiskCustomers {
		t.Fatalf("name not set: %q", q.Name)
	}
	if strings.Count(q.SQL, "?") != len(q.Args) {
		t.Fatalf("placeholder count %d != args %d", strings.Count(q.SQL, "?"), len(q.Args))
	}
	if q.Args[0] != 0.3 || q.Args[2] != 5 {
		t.Fatalf("unexpected args: %v", q.Args)
	}
	for _, want := range []string{"Billing Issue", "No Activity", "Low Engagement", "Healthy"} {
		if !strings.Contains(q.SQL, want) {
			t.Fatalf("missing risk category %q", want)
		}
	}
}

func TestEveryEntryResolves(t *testing.T) {
	for _, e := range Analyses() {
		t.Run(e.Name, func(t *testing.T) {
			q, err := Get(e.Name, Params{})
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if strings.Count(q.SQL, "?") != len(q.Args) {
				t.Fatalf("placeholders %d != args %d", strings.Count(q.SQL, "?"), len(q.Args))
			}
			if e.Description == "" || e.Category == "" {
				t.Fatalf("entry lacks metadata: %+v", e)
			}
		})
	}
	if len(Descriptions()) != len(Analyses()) {
		t.Fatalf("categories should be unique")
	}
}

func TestGetUnknown(t *testing.T) {
	if _, err := Get("nope", DefaultParams()); !errors.Is(err, ErrUnknownAnalysis) {
		t.Fatalf("expected ErrUnknownAnalysis, got %v", err)
	}
}

func TestBuildCustomQuery(t *testing.T) {
	q, err := BuildCustomQuery("customer_summary", []string{"customer_id", "plan_name"},
		map[string]any{"plan_name": "O'Brien", "billings": "Active", "churned": nil}, "average_monthly_revenue desc", 20)
	if err != nil {
		t.Fatalf("BuildCustomQuery: %v", err)
	}
	want := "SELECT customer_id, plan_name FROM customer_summary WHERE billings = ? AND churned IS NULL AND plan_name = ? ORDER BY average_monthly_revenue DESC LIMIT ?"
	if q.SQL != want {
		t.Fatalf("sql:\n got %s\nwant %s", q.SQL, want)
	}
	if len(q.Args) != 3 || q.Args[1] != "O'Brien" {
		t.Fatalf("args: %v", q.Args)
	}
	if !strings.Contains(q.Display(), "plan_name = 'O''Brien'") {
		t.Fatalf("display should escape quotes: %s", q.Display())
	}
}

func TestBuildCustomQueryRejectsInjection(t *testing.T) {
	cases := []struct {
		name    string
		table   string
		cols    []string
		filters map[string]any
		order   string
	}{
		{"table", "customers; DROP TABLE plans", nil, nil, ""},
		{"column", "customers", []string{"name--"}, nil, ""},
		{"filter", "customers", nil, map[string]any{"1=1 OR x": 1}, ""},
		{"order", "customers", nil, nil, "revenue; DROP"},
		{"direction", "customers", nil, nil, "revenue sideways"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BuildCustomQuery(tc.table, tc.cols, tc.filters, tc.order, 0); !errors.Is(err, ErrInvalidIdentifier) {
				t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
			}
		})
	}
}

func TestPlanFilteredDisplay(t *testing.T) {
	q := PlanFiltered("Pro")
	if q.Name != PlanFilteredQuery || len(q.Args) != 1 {
		t.Fatalf("unexpected query: %+v", q)
	}
	if !strings.Contains(q.Display(), "plan_name = 'Pro'") {
		t.Fatalf("display: %s", q.Display())
	}
	if strings.Contains(q.SQL, "'Pro'") {
		t.Fatalf("execution SQL must stay parameterized: %s", q.SQL)
	}
}

func TestRebind(t *testing.T) {
	got := Rebind("SELECT * FROM t WHERE a = ? AND b = '?' AND c = ? LIMIT ?")
	want := "SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2 LIMIT $3"
	if got != want {
		t.Fatalf("Rebind:\n got %s\nwant %s", got, want)
	}
}

func TestLiteral(t *testing.T) {
	cases := map[string]any{"NULL": nil, "TRUE": true, "42": int64(42), "0.5": 0.5, "'it''s'": "it's"}
	for want, in := range cases {
		if got := Literal(in); got != want {
			t.Fatalf("Literal(%v) = %s, want %s", in, got, want)
		}
	}
}
