package router

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/KaramelBytes/usageql-cli/internal/table"
)

const maxFacts = 3

// answer writes a preamble for the intent followed by up to three facts
// computed from data. A fact whose columns are absent is skipped.
func answer(in Intent, data *table.Table) string {
	p := message.NewPrinter(language.English)
	var preamble string
	var facts []string
	if data.Len() == 0 {
		return preambleFor(p, in) + "\n\n- No rows matched this analysis."
	}
	if x, ok := in.(TopRevenue); ok {
		in = TopRevenue{Limit: min(x.Limit, data.Len())}
	}
	preamble = preambleFor(p, in)
	switch x := in.(type) {
	case TopRevenue:
		if sum, ok := sumOf(data, "average_monthly_revenue"); ok {
			facts = append(facts, p.Sprintf("Combined monthly revenue: $%.2f", sum))
		}
		if name, rev, ok := topBy(data, "customer_name", "average_monthly_revenue"); ok {
			facts = append(facts, p.Sprintf("Highest-paying customer: %s at $%.2f per month", name, rev))
		}
		if plan, n, ok := mostCommon(data, "plan_name"); ok {
			facts = append(facts, p.Sprintf("Most common plan among them: %s (%d customers)", plan, n))
		}
	case UsageCorrelation:
		if plan, v, ok := topBy(data, "plan_name", "avg_contacts"); ok {
			facts = append(facts, p.Sprintf("Highest contact usage: %s plan with %.1f contacts on average", plan, v))
		}
		if plan, v, ok := topBy(data, "plan_name", "avg_workflows"); ok {
			facts = append(facts, p.Sprintf("Most workflows: %s plan with %.1f on average", plan, v))
		}
		if plan, v, ok := topBy(data, "plan_name", "avg_contacts_per_workflow"); ok {
			facts = append(facts, p.Sprintf("Highest contacts per workflow: %s plan at %.1f", plan, v))
		}
	case PlanAnalysis:
		if sum, ok := sumOf(data, "total_revenue"); ok {
			facts = append(facts, p.Sprintf("Total monthly revenue across plans: $%.2f", sum))
		}
		if plan, v, ok := topBy(data, "plan_name", "total_revenue"); ok {
			facts = append(facts, p.Sprintf("Top plan by revenue: %s ($%.2f)", plan, v))
		}
		if plan, v, ok := topBy(data, "plan_name", "customer_count"); ok {
			facts = append(facts, p.Sprintf("Largest plan: %s with %d customers", plan, int64(v)))
		}
	case Engagement:
		if x.HighValue {
			facts = append(facts, p.Sprintf("%d high-value customers have low activation", data.Len()))
			if sum, ok := sumOf(data, "average_monthly_revenue"); ok {
				facts = append(facts, p.Sprintf("Monthly revenue involved: $%.2f", sum))
			}
		} else if name, v, ok := topBy(data, "customer_name", "engagement_score"); ok {
			facts = append(facts, p.Sprintf("Most engaged customer: %s (score %.1f)", name, v))
		}
		if avg, ok := avgOf(data, "activation_rate"); ok {
			facts = append(facts, p.Sprintf("Average activation rate: %.1f%%", avg*100))
		}
	case AtRisk:
		facts = append(facts, p.Sprintf("%d customers flagged", data.Len()))
		if sum, ok := sumOf(data, "average_monthly_revenue"); ok {
			facts = append(facts, p.Sprintf("Monthly revenue at risk: $%.2f", sum))
		}
		if counts := countBy(data, "risk_category"); counts != "" {
			facts = append(facts, "Breakdown: "+counts)
		}
	case FeatureAdoption:
		if plan, v, ok := topBy(data, "plan_name", "api_access_adoption"); ok {
			facts = append(facts, p.Sprintf("Highest API access adoption: %s plan at %.1f%%", plan, v))
		}
		if plan, v, ok := topBy(data, "plan_name", "security_adoption"); ok {
			facts = append(facts, p.Sprintf("Highest advanced security adoption: %s plan at %.1f%%", plan, v))
		}
		if plan, v, ok := topBy(data, "plan_name", "integrations_adoption"); ok {
			facts = append(facts, p.Sprintf("Highest integrations adoption: %s plan at %.1f%%", plan, v))
		}
	case Lifecycle:
		if stage, v, ok := topBy(data, "lifecycle_stage", "customer_count"); ok {
			facts = append(facts, p.Sprintf("Largest stage: %s with %d customers", stage, int64(v)))
		}
		if stage, v, ok := topBy(data, "lifecycle_stage", "avg_revenue"); ok {
			facts = append(facts, p.Sprintf("Highest average revenue: %s at $%.2f", stage, v))
		}
		if stage, v, ok := topBy(data, "lifecycle_stage", "avg_activation_rate"); ok {
			facts = append(facts, p.Sprintf("Best activation: %s at %.1f%%", stage, v*100))
		}
	case Insights:
		if sum, ok := sumOf(data, "customer_count"); ok {
			facts = append(facts, p.Sprintf("Customers covered: %d", int64(sum)))
		}
		if seg, v, ok := topSegment(data); ok {
			facts = append(facts, p.Sprintf("Largest segment: %s with %d customers", seg, v))
		}
		if tier, v, ok := topBy(data, "revenue_tier", "total_revenue"); ok {
			facts = append(facts, p.Sprintf("Highest-revenue segment tier: %s ($%.2f)", tier, v))
		}
	case PlanFiltered:
		facts = append(facts, p.Sprintf("%d %s customers", data.Len(), x.Plan))
		if sum, ok := sumOf(data, "average_monthly_revenue"); ok {
			facts = append(facts, p.Sprintf("Total monthly revenue: $%.2f", sum))
		}
		if avg, ok := avgOf(data, "average_monthly_revenue"); ok {
			facts = append(facts, p.Sprintf("Average monthly revenue: $%.2f", avg))
		}
	}
	if len(facts) > maxFacts {
		facts = facts[:maxFacts]
	}
	if len(facts) == 0 {
		return preamble
	}
	return preamble + "\n\n- " + strings.Join(facts, "\n- ")
}

func preambleFor(p *message.Printer, in Intent) string {
	switch x := in.(type) {
	case TopRevenue:
		return p.Sprintf("Here are the top %d customers by monthly revenue.", x.Limit)
	case UsageCorrelation:
		return "Here's how contact and workflow usage compares across plans."
	case PlanAnalysis:
		return "Here's how each subscription plan performs."
	case Engagement:
		if x.HighValue {
			return "Here are high-value customers with low user activation."
		}
		return "Here are customers ranked by engagement score."
	case AtRisk:
		return "Here are the customers that may be at risk of churning."
	case FeatureAdoption:
		return "Here's feature adoption by plan, as a percentage of customers."
	case Lifecycle:
		return "Here's the customer base by lifecycle stage."
	case Insights:
		return "Here's an overview of customer segments by revenue tier and plan."
	case PlanFiltered:
		return p.Sprintf("Here's information about %s plan customers.", x.Plan)
	default:
		return "Here are the results."
	}
}

func previewAnswer(in Intent) string {
	return preambleFor(message.NewPrinter(language.English), in) +
		"\n\nNo database is attached, so this is the query that would run."
}

func fallbackAnswer(question string) string {
	return "I understand you're asking: '" + question + "'. I couldn't match it to one of the available analyses. " +
		"Try one of the example questions, such as \"" + exampleQuestions[0] + "\""
}

// SampleNote labels answers computed from the built-in sample tables.
const SampleNote = "Here is the same analysis over the built-in sample data (sample data, not your data):"

func sampleAnswer(in Intent, data *table.Table) string {
	return SampleNote + "\n\n" + answer(in, data)
}

func apology(msg string) string {
	return "I'm sorry, I encountered an error processing your question: " + msg
}

func sumOf(t *table.Table, col string) (float64, bool) {
	i := t.Index(col)
	if i < 0 {
		return 0, false
	}
	var sum float64
	var n int
	for _, row := range t.Rows {
		if f, ok := table.Float(row[i]); ok {
			sum += f
			n++
		}
	}
	return sum, n > 0
}

func avgOf(t *table.Table, col string) (float64, bool) {
	i := t.Index(col)
	if i < 0 {
		return 0, false
	}
	var sum float64
	var n int
	for _, row := range t.Rows {
		if f, ok := table.Float(row[i]); ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// topBy returns the label of the row with the largest value column.
func topBy(t *table.Table, labelCol, valueCol string) (string, float64, bool) {
	li, vi := t.Index(labelCol), t.Index(valueCol)
	if li < 0 || vi < 0 {
		return "", 0, false
	}
	var best float64
	var label string
	found := false
	for _, row := range t.Rows {
		f, ok := table.Float(row[vi])
		if !ok {
			continue
		}
		if !found || f > best {
			best, label, found = f, table.String(row[li]), true
		}
	}
	if found && label == "" {
		label = "(none)"
	}
	return label, best, found
}

func mostCommon(t *table.Table, col string) (string, int, bool) {
	i := t.Index(col)
	if i < 0 {
		return "", 0, false
	}
	counts := map[string]int{}
	for _, row := range t.Rows {
		if row[i] != nil {
			counts[table.String(row[i])]++
		}
	}
	var best string
	n := 0
	for k, c := range counts {
		if c > n || (c == n && k < best) {
			best, n = k, c
		}
	}
	return best, n, n > 0
}

// countBy renders "A 3, B 1" ordered by descending count.
func countBy(t *table.Table, col string) string {
	i := t.Index(col)
	if i < 0 {
		return ""
	}
	counts := map[string]int{}
	for _, row := range t.Rows {
		if row[i] != nil {
			counts[table.String(row[i])]++
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if counts[keys[a]] != counts[keys[b]] {
			return counts[keys[a]] > counts[keys[b]]
		}
		return keys[a] < keys[b]
	})
	parts := make([]string, len(keys))
	for j, k := range keys {
		parts[j] = k + " " + message.NewPrinter(language.English).Sprint(counts[k])
	}
	return strings.Join(parts, ", ")
}

func topSegment(t *table.Table) (string, int64, bool) {
	ti, pi, ci := t.Index("revenue_tier"), t.Index("plan_name"), t.Index("customer_count")
	if ti < 0 || pi < 0 || ci < 0 {
		return "", 0, false
	}
	var best int64 = -1
	var label string
	for _, row := range t.Rows {
		f, ok := table.Float(row[ci])
		if !ok || int64(f) <= best {
			continue
		}
		best = int64(f)
		label = table.String(row[ti]) + " tier / " + table.String(row[pi])
	}
	return label, best, best >= 0
}
