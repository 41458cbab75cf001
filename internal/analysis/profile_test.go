package analysis

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/usageql-cli/internal/table"
)

func usageTable() *table.Table {
	t := table.New("customers", "customer_id", "plan", "mrr", "seats", "active", "signup", "note")
	plans := []string{"Basic", "Pro", "Pro", "Enterprise", "Basic", "Pro", "Basic", "Pro", "Basic", "Pro"}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		mrr := float64(100 + i*10)
		if i == 9 {
			mrr = 10000
		}
		var note any = "customer note " + string(rune('a'+i))
		if i == 3 {
			note = nil
		}
		t.Append(int64(i+1), plans[i], mrr, int64(2*(i+1)), i%2 == 0, base.AddDate(0, i, 0), note)
	}
	return t
}

func column(r *Report, name string) ColumnSummary {
	for _, c := range r.Cols {
		if c.Name == name {
			return c
		}
	}
	return ColumnSummary{}
}

func TestProfileKinds(t *testing.T) {
	r := Profile(usageTable(), DefaultOptions())
	if r.Rows != 10 || len(r.Cols) != 7 {
		t.Fatalf("shape: rows=%d cols=%d", r.Rows, len(r.Cols))
	}
	want := map[string]string{
		"customer_id": "numeric",
		"plan":        "categorical",
		"mrr":         "numeric",
		"seats":       "numeric",
		"active":      "boolean",
		"signup":      "datetime",
		"note":        "text",
	}
	for name, kind := range want {
		if got := column(r, name).Kind; got != kind {
			t.Errorf("%s: kind %q, want %q", name, got, kind)
		}
	}
	note := column(r, "note")
	if note.Missing != 1 || note.NonNull != 9 || len(note.ExampleTexts) != 3 {
		t.Errorf("note summary: %+v", note)
	}
	signup := column(r, "signup")
	if signup.Earliest != "2024-01-01" || signup.Latest != "2024-10-01" {
		t.Errorf("date range: %s..%s", signup.Earliest, signup.Latest)
	}
}

func TestProfileNumericAndOutliers(t *testing.T) {
	r := Profile(usageTable(), DefaultOptions())
	mrr := column(r, "mrr")
	if mrr.Min != 100 || mrr.Max != 10000 {
		t.Fatalf("min/max: %+v", mrr)
	}
	if mrr.Median != 145 {
		t.Errorf("median = %v, want 145", mrr.Median)
	}
	if mrr.OutliersCount != 1 || mrr.OutlierThreshold != 3.5 {
		t.Errorf("outliers: %+v", mrr)
	}
	seats := column(r, "seats")
	if seats.Mean != 11 || seats.OutliersCount != 0 {
		t.Errorf("seats: %+v", seats)
	}
}

func TestProfileTopValues(t *testing.T) {
	opt := DefaultOptions()
	opt.TopValues = 2
	plan := column(Profile(usageTable(), opt), "plan")
	if plan.Unique != 3 || len(plan.TopValues) != 2 {
		t.Fatalf("plan: %+v", plan)
	}
	if plan.TopValues[0] != (CategoryCount{Value: "Pro", Count: 5}) || plan.TopValues[1] != (CategoryCount{Value: "Basic", Count: 4}) {
		t.Errorf("top values: %+v", plan.TopValues)
	}
}

func TestProfileCorrelations(t *testing.T) {
	r := Profile(usageTable(), DefaultOptions())
	if r.Corr == nil || len(r.Corr.Columns) != 3 {
		t.Fatalf("corr: %+v", r.Corr)
	}
	pairs := r.TopCorrelations(1)
	if len(pairs) != 1 || pairs[0].A != "customer_id" || pairs[0].B != "seats" || math.Abs(pairs[0].R-1) > 1e-9 {
		t.Fatalf("top pair: %+v", pairs)
	}
	opt := DefaultOptions()
	opt.Correlations = false
	if Profile(usageTable(), opt).Corr != nil {
		t.Fatal("correlations should be skipped")
	}
}

func TestProfileGroupBy(t *testing.T) {
	opt := DefaultOptions()
	opt.GroupBy = "plan"
	r := Profile(usageTable(), opt)
	if len(r.Groups) != 3 || r.Groups[0].Key != "Basic" || r.Groups[0].Size != 4 {
		t.Fatalf("groups: %+v", r.Groups)
	}
	if got := r.Groups[1].Means["seats"]; got != 8 {
		t.Errorf("Enterprise seats mean = %v, want 8", got)
	}
	opt.GroupBy = "region"
	r = Profile(usageTable(), opt)
	if len(r.Groups) != 0 || len(r.Warnings) != 1 {
		t.Fatalf("missing group-by column: %+v", r.Warnings)
	}
}

func TestProfileEmptyTable(t *testing.T) {
	r := Profile(table.New("empty", "a", "b"), DefaultOptions())
	if r.Rows != 0 || column(r, "a").Kind != "empty" || r.Corr != nil || len(r.Samples) != 0 {
		t.Fatalf("empty: %+v", r)
	}
	if !strings.Contains(r.Markdown(), "Rows: 0") {
		t.Fatal("markdown should render for empty tables")
	}
}

func TestMarkdown(t *testing.T) {
	opt := DefaultOptions()
	opt.GroupBy = "plan"
	md := Profile(usageTable(), opt).Markdown()
	for _, want := range []string{
		"[TABLE PROFILE]",
		"Table: customers",
		"- plan: categorical",
		"Pro(5)",
		"- signup: datetime (non-null 10, missing 0.0%) from 2024-01-01 to 2024-10-01",
		"outliers: 1 above |z|>3.5",
		"[CORRELATIONS]",
		"- customer_id ~ seats: r=1.000",
		"[GROUP-BY MEANS]",
		"[SAMPLE ROWS]",
		"| 1 | Basic | 100 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMedianMAD(t *testing.T) {
	med, mad := medianMAD([]float64{1, 2, 3, 4, 100})
	if med != 3 || mad != 1 {
		t.Fatalf("median=%v mad=%v", med, mad)
	}
	if got := quantile([]float64{0, 10}, 0.25); got != 2.5 {
		t.Fatalf("quantile = %v", got)
	}
}
