package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	_ "github.com/KaramelBytes/usageql-cli/internal/backend/sqlite"
	"github.com/KaramelBytes/usageql-cli/internal/catalog"
	"github.com/KaramelBytes/usageql-cli/internal/dataset"
	"github.com/KaramelBytes/usageql-cli/internal/pipeline"
	"github.com/KaramelBytes/usageql-cli/internal/table"
)

func loadedRouter(t *testing.T) *Router {
	t.Helper()
	ctx := context.Background()
	b, err := backend.Open(ctx, backend.Config{Kind: "sqlite"})
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	if _, err := pipeline.Run(ctx, pipeline.Options{DataDir: t.TempDir(), Generator: dataset.DefaultGenerator(), Backend: b}); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return New(b, Options{Timeout: 10 * time.Second})
}

func TestClassify(t *testing.T) {
	lim := limits{def: 10, max: 100}
	cases := []struct {
		q    string
		want Intent
	}{
		{"Who are the top 10 customers by revenue?", TopRevenue{Limit: 10}},
		{"show me the top 3 paying customers", TopRevenue{Limit: 3}},
		{"top 500 customers", TopRevenue{Limit: 100}},
		{"What is our MRR?", TopRevenue{Limit: 10}},
		{"Is there a relationship between contacts and workflows?", UsageCorrelation{}},
		{"How do usage patterns differ across plans?", UsageCorrelation{}},
		{"Compare performance across plans", PlanAnalysis{}},
		{"breakdown by tier", PlanAnalysis{}},
		{"Which customers have the highest engagement?", Engagement{}},
		{"Which high-value customers have low engagement?", Engagement{HighValue: true}},
		{"Which customers are at risk of churning?", AtRisk{}},
		{"Any accounts past due?", AtRisk{}},
		{"Which add-ons are adopted on Standard plans?", FeatureAdoption{}},
		{"What are the biggest risks?", AtRisk{}},
		{"How widely are premium features adopted?", FeatureAdoption{}},
		{"Show me the customer lifecycle breakdown", Lifecycle{}},
		{"how long have people been customers", Lifecycle{}},
		{"Tell me about Pro customers", PlanFiltered{Plan: "Pro"}},
		{"anything interesting about ENTERPRISE accounts", PlanFiltered{Plan: "Enterprise"}},
		{"Show me customer segments", Insights{}},
	}
	for _, tc := range cases {
		t.Run(tc.q, func(t *testing.T) {
			got, ok := classify(tc.q, lim)
			if !ok || got != tc.want {
				t.Fatalf("classify(%q) = %#v, %v; want %#v", tc.q, got, ok, tc.want)
			}
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	// each matches both the revenue and the at-risk rules; revenue comes first
	lim := limits{def: 10, max: 100}
	cases := []struct {
		q    string
		want Intent
	}{
		{"top 5 customers at risk of churn", TopRevenue{Limit: 5}},
		{"Who are the top customers at risk?", TopRevenue{Limit: 10}},
		{"What are the top risks?", TopRevenue{Limit: 10}},
		{"Show the top at-risk customers", TopRevenue{Limit: 10}},
		{"top 5 risky accounts", TopRevenue{Limit: 5}},
		{"What are the top add-ons for Standard plans?", TopRevenue{Limit: 10}},
	}
	for _, tc := range cases {
		if got, ok := classify(tc.q, lim); !ok || got != tc.want {
			t.Errorf("classify(%q) = %#v, want %#v", tc.q, got, tc.want)
		}
	}
	// a plan name outside the generic rule does not filter
	got, _ := classify("churn risk for pro customers", limits{def: 10})
	if got != (AtRisk{}) {
		t.Fatalf("expected at-risk intent, got %#v", got)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	for _, q := range []string{"", "   ", "asdkfj random text", "problem"} {
		if got, ok := classify(q, limits{}); ok {
			t.Fatalf("classify(%q) unexpectedly matched %#v", q, got)
		}
	}
}

func TestProcessQueryTotality(t *testing.T) {
	r := New(nil, Options{})
	inputs := []string{"", " \t\n", "asdkfj random text", "'; DROP TABLE customers; --", strings.Repeat("top ", 1000), "\x00\xff", "Tell me about pro"}
	for _, q := range inputs {
		res := r.ProcessQuery(context.Background(), q)
		if res.ID == "" || res.Answer == "" {
			t.Fatalf("malformed result for %q: %+v", q, res)
		}
		if res.Error != "" || res.Data != nil {
			t.Fatalf("preview mode should not fail or return data for %q: %+v", q, res)
		}
	}
}

func TestScenarioTopRevenue(t *testing.T) {
	r := loadedRouter(t)
	res := r.ProcessQuery(context.Background(), "Who are the top 10 customers by revenue?")
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.Analysis != catalog.TopRevenueCustomers {
		t.Fatalf("analysis: %s", res.Analysis)
	}
	if res.Data.Len() == 0 || res.Data.Len() > 10 {
		t.Fatalf("expected 1..10 rows, got %d", res.Data.Len())
	}
	prev := 1e18
	for i := range res.Data.Rows {
		v := table.FloatOr(res.Data.Value(i, "average_monthly_revenue"), -1)
		if v > prev {
			t.Fatalf("rows not sorted by revenue descending at %d", i)
		}
		prev = v
	}
	if !strings.Contains(res.SQL, "LIMIT 10") {
		t.Fatalf("displayed SQL should show the bound limit: %s", res.SQL)
	}
	if !strings.Contains(res.Answer, "Combined monthly revenue") {
		t.Fatalf("answer lacks facts: %s", res.Answer)
	}
}

func TestScenarioPlanFiltered(t *testing.T) {
	r := loadedRouter(t)
	res := r.ProcessQuery(context.Background(), "Tell me about Pro customers")
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.Analysis != catalog.PlanFilteredQuery || res.Intent != "plan_filtered" {
		t.Fatalf("dispatch: %s/%s", res.Intent, res.Analysis)
	}
	if !strings.Contains(res.SQL, "plan_name = 'Pro'") {
		t.Fatalf("SQL should show the plan literal: %s", res.SQL)
	}
	if res.Data.Len() == 0 {
		t.Fatalf("expected Pro customers in the sample data")
	}
	for i := range res.Data.Rows {
		if res.Data.Value(i, "plan_name") != "Pro" {
			t.Fatalf("row %d is not Pro: %v", i, res.Data.Rows[i])
		}
	}
	for _, want := range []string{"Pro customers", "Total monthly revenue", "Average monthly revenue"} {
		if !strings.Contains(res.Answer, want) {
			t.Fatalf("answer missing %q: %s", want, res.Answer)
		}
	}
}

func TestScenarioFallback(t *testing.T) {
	r := loadedRouter(t)
	res := r.ProcessQuery(context.Background(), "asdkfj random text")
	if res.Data != nil || res.Error != "" {
		t.Fatalf("fallback should have no data and no error: %+v", res)
	}
	if !strings.Contains(res.Answer, "asdkfj random text") {
		t.Fatalf("answer should echo the question: %s", res.Answer)
	}
	if res.SQL != FallbackSQL {
		t.Fatalf("sql note: %q", res.SQL)
	}
}

func TestEveryExampleRuns(t *testing.T) {
	r := loadedRouter(t)
	seen := map[string]bool{}
	for _, q := range r.ExampleQuestions() {
		res := r.ProcessQuery(context.Background(), q)
		if res.Error != "" {
			t.Fatalf("%q failed: %s\nSQL: %s", q, res.Error, res.SQL)
		}
		if res.Data == nil {
			t.Fatalf("%q returned no data", q)
		}
		seen[res.Analysis] = true
	}
	for _, e := range catalog.Analyses() {
		if !seen[e.Name] {
			t.Fatalf("no example question exercises %s", e.Name)
		}
	}
}

func TestAtRiskCategories(t *testing.T) {
	r := loadedRouter(t)
	res := r.ProcessQuery(context.Background(), "Which customers are at risk of churning?")
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	valid := map[string]bool{"Billing Issue": true, "No Activity": true, "Low Engagement": true, "Healthy": true}
	for i := range res.Data.Rows {
		if !valid[table.String(res.Data.Value(i, "risk_category"))] {
			t.Fatalf("bad risk category in row %d: %v", i, res.Data.Rows[i])
		}
	}
}

type stubExec struct {
	err   error
	panic bool
	block bool
}

func (s stubExec) ExecuteQuery(ctx context.Context, _ string, _ ...any) (*table.Table, error) {
	if s.panic {
		panic("driver exploded")
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, s.err
}

func TestBackendFailure(t *testing.T) {
	r := New(stubExec{err: errors.New("no such table: plans")}, Options{Sample: dataset.SeededGenerator{Seed: 7, Customers: 20}})
	t.Cleanup(func() { _ = r.Close() })
	res := r.ProcessQuery(context.Background(), "Who are the top 10 customers by revenue?")
	if res.Error != "no such table: plans" || res.Data != nil {
		t.Fatalf("expected error result: %+v", res)
	}
	if res.SQL == "" || !strings.Contains(res.Answer, "no such table") {
		t.Fatalf("failure should keep SQL and explain: %+v", res)
	}
	for _, want := range []string{SampleNote, "Here are the top 10 customers by monthly revenue.", "Combined monthly revenue: $"} {
		if !strings.Contains(res.Answer, want) {
			t.Fatalf("answer missing sample-data section %q:\n%s", want, res.Answer)
		}
	}
	// the sample database is built once and reused
	again := r.ProcessQuery(context.Background(), "Which customers are at risk of churning?")
	if again.Error == "" || !strings.Contains(again.Answer, SampleNote) {
		t.Fatalf("second failure answer:\n%s", again.Answer)
	}
}

func TestTopRevenuePreambleUsesRowCount(t *testing.T) {
	data := table.New("top", "customer_name", "average_monthly_revenue")
	data.Append("Acme", 900.0)
	data.Append("Globex", 400.0)
	got := answer(TopRevenue{Limit: 10}, data)
	if !strings.HasPrefix(got, "Here are the top 2 customers by monthly revenue.") {
		t.Fatalf("preamble should reflect returned rows:\n%s", got)
	}
}

func TestPanicRecovered(t *testing.T) {
	r := New(stubExec{panic: true}, Options{})
	res := r.ProcessQuery(context.Background(), "top customers")
	if res.Error != "driver exploded" || res.Data != nil {
		t.Fatalf("panic not converted: %+v", res)
	}
}

func TestTimeout(t *testing.T) {
	r := New(stubExec{block: true}, Options{Timeout: 20 * time.Millisecond})
	res := r.ProcessQuery(context.Background(), "top customers")
	if !strings.Contains(res.Error, "deadline") {
		t.Fatalf("expected deadline error, got %q", res.Error)
	}
}

func TestPreviewMode(t *testing.T) {
	r := New(nil, Options{})
	res := r.ProcessQuery(context.Background(), "Tell me about Pro customers")
	if res.Data != nil || res.Error != "" {
		t.Fatalf("preview should not execute: %+v", res)
	}
	if !strings.Contains(res.SQL, "plan_name = 'Pro'") {
		t.Fatalf("preview SQL: %s", res.SQL)
	}
}

func TestQueryResultJSON(t *testing.T) {
	r := New(nil, Options{})
	b, err := json.Marshal(r.ProcessQuery(context.Background(), "asdkfj"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := m["error"]; !ok || v != nil {
		t.Fatalf("error should be null: %s", b)
	}
	if v, ok := m["data"]; !ok || v != nil {
		t.Fatalf("data should be null: %s", b)
	}
	if m["sql"] != FallbackSQL {
		t.Fatalf("sql: %s", b)
	}
}

func TestAvailableAnalyses(t *testing.T) {
	r := New(nil, Options{})
	if len(r.AvailableAnalyses()) != len(catalog.Analyses()) {
		t.Fatalf("analyses: %v", r.AvailableAnalyses())
	}
}

func TestAtRiskFlagsBlankBillings(t *testing.T) {
	ctx := context.Background()
	b, err := backend.Open(ctx, backend.Config{Kind: "sqlite"})
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	customers := table.New(dataset.Customers, "customer_id", "customer_name")
	customers.Append("C1", "Acme")
	customers.Append("C2", "Globex")
	plans := table.New(dataset.Plans, "customer_id", "plan_name", "billings", "average_monthly_revenue")
	plans.Append("C1", "Pro", nil, 900.0)
	plans.Append("C2", "Basic", "Active", 100.0)
	activity := table.New(dataset.Activity, "customer_id", "regular_users", "monthly_active_users")
	activity.Append("C1", int64(10), int64(8))
	activity.Append("C2", int64(10), int64(9))
	tables := map[string]*table.Table{dataset.Customers: customers, dataset.Plans: plans, dataset.Activity: activity}
	if err := b.CreateTables(ctx, tables); err != nil {
		t.Fatalf("create tables: %v", err)
	}

	res := New(b, Options{}).ProcessQuery(ctx, "Which customers are at risk of churning?")
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.Data.Len() != 1 || res.Data.Value(0, "customer_id") != "C1" || res.Data.Value(0, "risk_category") != "Billing Issue" {
		t.Fatalf("blank billings should be a billing issue: %v", res.Data.Rows)
	}
}
