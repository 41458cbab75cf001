package router

// Intent is what a question resolved to. The set of intents is closed: only
// the types in this file implement it.
type Intent interface {
	Name() string
	intent()
}

// TopRevenue asks for the highest-revenue customers.
type TopRevenue struct{ Limit int }

// UsageCorrelation asks how contacts relate to workflows across plans.
type UsageCorrelation struct{}

// PlanAnalysis asks for per-plan performance.
type PlanAnalysis struct{}

// Engagement asks about activation and engagement. HighValue narrows it to
// high-revenue, low-activation customers.
type Engagement struct{ HighValue bool }

// AtRisk asks which customers may churn.
type AtRisk struct{}

// FeatureAdoption asks how widely features are used per plan.
type FeatureAdoption struct{}

// Lifecycle asks about customer tenure stages.
type Lifecycle struct{}

// Insights is a general question with no specific metric.
type Insights struct{}

// PlanFiltered is a general question about one plan's customers.
type PlanFiltered struct{ Plan string }

func (TopRevenue) Name() string       { return "top_revenue" }
func (UsageCorrelation) Name() string { return "usage_correlation" }
func (PlanAnalysis) Name() string     { return "plan_analysis" }
func (e Engagement) Name() string {
	if e.HighValue {
		return "engagement_high_value"
	}
	return "engagement"
}
func (AtRisk) Name() string          { return "at_risk" }
func (FeatureAdoption) Name() string { return "feature_adoption" }
func (Lifecycle) Name() string       { return "lifecycle" }
func (Insights) Name() string        { return "insights" }
func (PlanFiltered) Name() string    { return "plan_filtered" }

func (TopRevenue) intent()       {}
func (UsageCorrelation) intent() {}
func (PlanAnalysis) intent()     {}
func (Engagement) intent()       {}
func (AtRisk) intent()           {}
func (FeatureAdoption) intent()  {}
func (Lifecycle) intent()        {}
func (Insights) intent()         {}
func (PlanFiltered) intent()     {}
