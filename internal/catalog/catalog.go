// Package catalog holds the fixed set of named analyses and the
// parameterized query builder used by the router.
package catalog

import (
	"errors"
	"fmt"
)

// Analysis names.
const (
	TopRevenueCustomers    = "top_revenue_customers"
	UsageByPlan            = "usage_by_plan"
	EngagementAnalysis     = "engagement_analysis"
	PlanPerformance        = "plan_performance"
	AtRiskCustomers        = "at_risk_customers"
	FeatureAdoption        = "feature_adoption"
	LifecycleAnalysis      = "lifecycle_analysis"
	LowEngagementHighValue = "low_engagement_high_value"
	CustomerSegments       = "customer_segments"
)

// ErrUnknownAnalysis is returned by Get for a name not in the catalog.
var ErrUnknownAnalysis = errors.New("unknown analysis")

// Params carries the tunable values bound into analysis queries.
type Params struct {
	// Limit caps row-level analyses. Zero means DefaultLimit.
	Limit                   int
	AtRiskActivation        float64
	HighValueRevenue        float64
	LowEngagementActivation float64
}

// DefaultLimit applies when Params.Limit is not set.
const DefaultLimit = 10

// DefaultParams returns the stock business thresholds.
func DefaultParams() Params {
	return Params{
		Limit:                   DefaultLimit,
		AtRiskActivation:        0.3,
		HighValueRevenue:        500,
		LowEngagementActivation: 0.5,
	}
}

func (p Params) limit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}

// Entry is one catalog analysis.
type Entry struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	build       func(Params) Query
}

var entries = []Entry{
	{
		Name: TopRevenueCustomers, Category: "Revenue Analysis",
		Description: "Top customers by monthly recurring revenue",
		build: func(p Params) Query {
			return Query{SQL: queryTopRevenueCustomers, Args: []any{p.limit()}}
		},
	},
	{
		Name: UsageByPlan, Category: "Usage Patterns",
		Description: "Contacts and workflows usage compared across plans",
		build:       static(queryUsageByPlan),
	},
	{
		Name: EngagementAnalysis, Category: "Engagement Metrics",
		Description: "User activation rates and engagement scores per customer",
		build: func(p Params) Query {
			return Query{SQL: queryEngagementAnalysis, Args: []any{p.limit()}}
		},
	},
	{
		Name: PlanPerformance, Category: "Plan Performance",
		Description: "Revenue and user metrics by subscription plan",
		build:       static(queryPlanPerformance),
	},
	{
		Name: AtRiskCustomers, Category: "Risk Assessment",
		Description: "Customers with billing issues, no activity or low engagement",
		build: func(p Params) Query {
			return Query{SQL: queryAtRiskCustomers, Args: []any{p.AtRiskActivation, p.AtRiskActivation, p.limit()}}
		},
	},
	{
		Name: FeatureAdoption, Category: "Feature Adoption",
		Description: "Adoption rates of premium features and add-ons by plan",
		build:       static(queryFeatureAdoption),
	},
	{
		Name: LifecycleAnalysis, Category: "Customer Lifecycle",
		Description: "Customers grouped by lifecycle stage and tenure",
		build:       static(queryLifecycleAnalysis),
	},
	{
		Name: LowEngagementHighValue, Category: "Upsell Opportunities",
		Description: "High-revenue customers with low user activation",
		build: func(p Params) Query {
			return Query{SQL: queryLowEngagementHighValue, Args: []any{p.HighValueRevenue, p.LowEngagementActivation, p.limit()}}
		},
	},
	{
		Name: CustomerSegments, Category: "Customer Segments",
		Description: "Customers grouped by revenue tier and plan",
		build:       static(queryCustomerSegments),
	},
}

func static(sql string) func(Params) Query {
	return func(Params) Query { return Query{SQL: sql} }
}

// Analyses returns every catalog entry in catalog order.
func Analyses() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Descriptions maps each analysis category to its description.
func Descriptions() map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Category] = e.Description
	}
	return out
}

// Get resolves a named analysis with p bound into its placeholders.
func Get(name string, p Params) (Query, error) {
	for _, e := range entries {
		if e.Name == name {
			q := e.build(p)
			q.Name = name
			return q, nil
		}
	}
	return Query{}, fmt.Errorf("%w: %q", ErrUnknownAnalysis, name)
}
