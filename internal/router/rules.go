package router

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/KaramelBytes/usageql-cli/internal/dataset"
)

// intentRule pairs a pattern over the lower-cased question with the intent
// it produces. Rules are tried in order and the first match wins.
type intentRule struct {
	name     string
	patterns []*regexp.Regexp
	build    func(question string, lim limits) Intent
}

type limits struct {
	def, max int
}

var (
	topLimitRe  = regexp.MustCompile(`\btop\s+(\d+)\b`)
	highValueRe = regexp.MustCompile(`\b(high[- ]value|valuable|high[- ]paying|high[- ]revenue)\b`)
	planNameRe  = regexp.MustCompile(`\b(basic|standard|pro|enterprise)\b`)
)

var rules = []intentRule{
	{
		name: "revenue",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(top|best|highest|leading|biggest|largest)\s+(\d+\s+)?(paying\s+)?(customers?|clients?|accounts?)\b`),
			regexp.MustCompile(`\b(revenue|mrr|income|earnings)\b`),
			regexp.MustCompile(`\btop\b`),
		},
		build: func(q string, lim limits) Intent { return TopRevenue{Limit: topLimit(q, lim)} },
	},
	{
		name: "usage",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(correlation|correlate|connection|relationship|usage)\b.*?\b(contacts?|workflows?)\b`),
			regexp.MustCompile(`\busage patterns?\b`),
		},
		build: func(string, limits) Intent { return UsageCorrelation{} },
	},
	{
		name: "plan",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(plans?|tiers?)\b.*\b(performance|perform|compare|comparison|breakdown|average|analysis)\b`),
			regexp.MustCompile(`\b(performance|perform|compare|comparison|breakdown|average|analysis)\b.*\b(plans?|tiers?)\b`),
			regexp.MustCompile(`\b(by|per|across|each)\s+(plan|tier)s?\b`),
		},
		build: func(string, limits) Intent { return PlanAnalysis{} },
	},
	{
		name: "engagement",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(engagement|engaged|active users?|activation|usage rates?)\b`),
		},
		build: func(q string, _ limits) Intent { return Engagement{HighValue: highValueRe.MatchString(q)} },
	},
	{
		name: "at_risk",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(risks?|risky|churn\w*|retention|lost|leaving|past due|cancel\w*)\b`),
		},
		build: func(string, limits) Intent { return AtRisk{} },
	},
	{
		name: "feature",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(features?|adoption|adopt\w*|api access|security|add-?ons?)\b`),
		},
		build: func(string, limits) Intent { return FeatureAdoption{} },
	},
	{
		name: "lifecycle",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(lifecycle|life cycle|tenure|new customers|veterans?|mature|how long|months since|cohorts?)\b`),
		},
		build: func(string, limits) Intent { return Lifecycle{} },
	},
	{
		name: "generic",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(tell me|show me|what|insights?|interesting|segments?|overview|summary|about)\b`),
		},
		build: func(q string, _ limits) Intent {
			if m := planNameRe.FindStringSubmatch(q); m != nil {
				if plan, ok := dataset.CanonicalPlan(m[1]); ok {
					return PlanFiltered{Plan: plan}
				}
			}
			return Insights{}
		},
	},
}

// classify maps a question to an intent. ok is false when no rule matches.
func classify(question string, lim limits) (Intent, bool) {
	q := strings.ToLower(question)
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(q) {
				return r.build(q, lim), true
			}
		}
	}
	return nil, false
}

// topLimit reads "top N" from the question, falling back to the default and
// capping at the maximum.
func topLimit(q string, lim limits) int {
	n := lim.def
	if m := topLimitRe.FindStringSubmatch(q); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			n = v
		}
	}
	if n <= 0 {
		n = 10
	}
	if lim.max > 0 && n > lim.max {
		n = lim.max
	}
	return n
}
