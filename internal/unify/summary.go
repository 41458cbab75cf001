package unify

import (
	"sort"

	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// TableStats describes the shape of one materialized table.
type TableStats struct {
	RowCount    int      `json:"row_count"`
	ColumnCount int      `json:"column_count"`
	Columns     []string `json:"columns"`
}

// Overview holds headline figures from the unified relation.
type Overview struct {
	TotalMRR         float64        `json:"total_mrr"`
	AvgMRR           float64        `json:"avg_mrr"`
	PlanDistribution map[string]int `json:"plan_distribution,omitempty"`
}

// Summary is a snapshot of every table produced by a pipeline run.
type Summary struct {
	Tables         map[string]TableStats `json:"tables"`
	TotalCustomers int                   `json:"total_customers"`
	Overview       Overview              `json:"overview"`
}

// Summarize reports per-table shapes and, when the unified relation is
// present, customer count, revenue totals and the plan distribution.
func Summarize(tables map[string]*table.Table) Summary {
	s := Summary{Tables: make(map[string]TableStats, len(tables))}
	for name, t := range tables {
		if t == nil {
			continue
		}
		s.Tables[name] = TableStats{RowCount: t.Len(), ColumnCount: len(t.Columns), Columns: append([]string{}, t.Columns...)}
	}
	u, ok := tables[UnifiedName]
	if !ok || u == nil {
		return s
	}
	s.TotalCustomers = u.Len()
	if u.Has("average_monthly_revenue") {
		var m mean
		for r := range u.Rows {
			m.add(u.Value(r, "average_monthly_revenue"))
		}
		s.Overview.TotalMRR = round2(m.sum)
		if m.n > 0 {
			s.Overview.AvgMRR = round2(m.sum / float64(m.n))
		}
	}
	if u.Has("plan_name") {
		s.Overview.PlanDistribution = map[string]int{}
		for r := range u.Rows {
			if p := u.Value(r, "plan_name"); p != nil {
				s.Overview.PlanDistribution[table.String(p)]++
			}
		}
	}
	return s
}

// TableNames returns the summarized table names in sorted order.
func (s Summary) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for n := range s.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
