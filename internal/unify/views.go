package unify

import (
	"math"
	"sort"

	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// View names produced by BuildViews.
const (
	CustomerSummary = "customer_summary"
	ActivityMetrics = "activity_metrics"
	PlanPerformance = "plan_performance"
	RevenueAnalysis = "revenue_analysis"
	UsagePatterns   = "usage_patterns"
)

// ViewNames lists every view in creation order.
var ViewNames = []string{CustomerSummary, ActivityMetrics, PlanPerformance, RevenueAnalysis, UsagePatterns}

// BuildViews derives the analytical views from the unified relation. Each view
// projects the columns that exist and skips derived fields whose inputs are
// missing.
func BuildViews(unified *table.Table) map[string]*table.Table {
	return map[string]*table.Table{
		CustomerSummary: customerSummary(unified),
		ActivityMetrics: activityMetrics(unified),
		PlanPerformance: planPerformance(unified),
		RevenueAnalysis: revenueAnalysis(unified),
		UsagePatterns:   usagePatterns(unified),
	}
}

// RevenueTier buckets monthly revenue: Low <100, Medium [100,500),
// High [500,2000), Enterprise >=2000. Nil revenue has no tier.
func RevenueTier(revenue any) any {
	f, ok := table.Float(revenue)
	if !ok {
		return nil
	}
	switch {
	case f < 100:
		return "Low"
	case f < 500:
		return "Medium"
	case f < 2000:
		return "High"
	default:
		return "Enterprise"
	}
}

func customerSummary(u *table.Table) *table.Table {
	v := u.Select(CustomerSummary, "customer_id", "customer_name", "plan_name", "average_monthly_revenue",
		"months_since_active", "billings", "regular_users", "monthly_active_users")
	if u.Has("average_monthly_revenue") {
		v.AddColumn("revenue_tier", func(r int) any { return RevenueTier(u.Value(r, "average_monthly_revenue")) })
	}
	return v
}

func activityMetrics(u *table.Table) *table.Table {
	v := u.Select(ActivityMetrics, "customer_id", "customer_name", "plan_name", "contacts", "workflows",
		"integrations", "beacons", "all_answers_contacts", "all_resolutions")
	if u.Has("contacts", "workflows") {
		v.AddColumn("engagement_score", func(r int) any {
			return 0.3*table.FloatOr(u.Value(r, "contacts"), 0) +
				0.4*table.FloatOr(u.Value(r, "workflows"), 0) +
				0.2*table.FloatOr(u.Value(r, "integrations"), 0) +
				0.1*table.FloatOr(u.Value(r, "beacons"), 0)
		})
	}
	return v
}

// mean accumulates a nil-skipping average.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v any) {
	if f, ok := table.Float(v); ok {
		m.sum += f
		m.n++
	}
}

func (m mean) value() any {
	if m.n == 0 {
		return nil
	}
	return round2(m.sum / float64(m.n))
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// planPerformance groups by plan_name; customers without a plan are excluded.
func planPerformance(u *table.Table) *table.Table {
	v := table.New(PlanPerformance, "plan_name", "customer_count", "avg_revenue", "total_revenue",
		"avg_regular_users", "avg_monthly_active", "avg_contacts", "avg_workflows")
	if !u.Has("plan_name") {
		return v
	}
	type group struct {
		count                                  int64
		revenue, regular, active, contacts, wf mean
	}
	groups := map[string]*group{}
	for r := range u.Rows {
		p := u.Value(r, "plan_name")
		if p == nil {
			continue
		}
		key := table.String(p)
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		g.count++
		g.revenue.add(u.Value(r, "average_monthly_revenue"))
		g.regular.add(u.Value(r, "regular_users"))
		g.active.add(u.Value(r, "monthly_active_users"))
		g.contacts.add(u.Value(r, "contacts"))
		g.wf.add(u.Value(r, "workflows"))
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		g := groups[k]
		v.Append(k, g.count, g.revenue.value(), round2(g.revenue.sum),
			g.regular.value(), g.active.value(), g.contacts.value(), g.wf.value())
	}
	return v
}

func revenueAnalysis(u *table.Table) *table.Table {
	if !u.Has("average_monthly_revenue") {
		return table.New(RevenueAnalysis)
	}
	v := u.Select(RevenueAnalysis, "customer_id", "customer_name", "plan_name", "average_monthly_revenue",
		"payment_frequency", "billings", "months_since_active")
	if u.Has("payment_frequency") {
		v.AddColumn("estimated_annual_revenue", func(r int) any {
			rev, ok := table.Float(u.Value(r, "average_monthly_revenue"))
			if !ok {
				return nil
			}
			if u.Value(r, "payment_frequency") == "Yearly" {
				return rev
			}
			return rev * 12
		})
	}
	return v
}

func usagePatterns(u *table.Table) *table.Table {
	v := u.Select(UsagePatterns, "customer_id", "plan_name", "regular_users", "monthly_active_users",
		"contacts", "workflows", "integrations", "saved_replies")
	if u.Has("monthly_active_users", "regular_users") {
		v.AddColumn("user_activation_rate", func(r int) any {
			return ratio(u.Value(r, "monthly_active_users"), u.Value(r, "regular_users"))
		})
	}
	if u.Has("contacts", "workflows") {
		v.AddColumn("contacts_per_workflow", func(r int) any {
			return ratio(u.Value(r, "contacts"), u.Value(r, "workflows"))
		})
	}
	return v
}

// ratio divides num by den, yielding exactly 0 when den is zero or missing.
func ratio(num, den any) float64 {
	d := table.FloatOr(den, 0)
	if d <= 0 {
		return 0
	}
	return table.FloatOr(num, 0) / d
}
