package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// Generator synthesizes a raw table for a source whose file is unavailable.
type Generator interface {
	Generate(name string) (*table.Table, error)
}

// SeededGenerator produces the same sample tables for the same Seed and Customers.
// Each table draws from its own PRNG seeded with Seed, so tables are
// independent of generation order.
type SeededGenerator struct {
	Seed      int64
	Customers int
}

// DefaultGenerator returns the generator used when no seed is configured.
func DefaultGenerator() SeededGenerator { return SeededGenerator{Seed: 42, Customers: 100} }

var (
	planChoices    = []string{"Basic", "Standard", "Pro", "Enterprise"}
	planWeights    = []float64{0.3, 0.4, 0.2, 0.1}
	billingChoices = []string{"Active", "Past Due", "Cancelled"}
	billingWeights = []float64{0.8, 0.1, 0.1}
	freqChoices    = []string{"Monthly", "Yearly"}
	freqWeights    = []float64{0.7, 0.3}
)

// Generate returns the raw sample table for name. Numeric-as-text columns are
// emitted as strings so the sample exercises the same cleaning paths as real exports.
func (g SeededGenerator) Generate(name string) (*table.Table, error) {
	n := g.Customers
	if n <= 0 {
		n = 100
	}
	r := rand.New(rand.NewSource(g.Seed))
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("CUST_%04d", i+1)
	}
	switch name {
	case Customers:
		t := table.New(Customers, KeyColumn, "customer_name")
		for i, id := range ids {
			t.Append(id, fmt.Sprintf("Customer Company %d", i+1))
		}
		return t, nil
	case Activity:
		t := table.New(Activity, KeyColumn,
			"docs_sites", "mailboxes", "regular_users", "monthly_active_users", "paid_users",
			"contacts", "workflows", "integrations", "beacons", "tags", "saved_replies",
			"light_users", "all_answers_contacts", "all_resolutions")
		for _, id := range ids {
			t.Append(id,
				randInt(r, 1, 10),
				randInt(r, 1, 20),
				randInt(r, 5, 100),
				randInt(r, 3, 80),
				randInt(r, 1, 50),
				strconv.FormatInt(randInt(r, 100, 10000), 10),
				randInt(r, 5, 50),
				randInt(r, 0, 15),
				randInt(r, 0, 10),
				strconv.FormatInt(randInt(r, 10, 200), 10),
				strconv.FormatInt(randInt(r, 5, 100), 10),
				randInt(r, 0, 20),
				randInt(r, 50, 5000),
				randInt(r, 20, 2000),
			)
		}
		return t, nil
	case Plans:
		t := table.New(Plans, KeyColumn,
			"payment_frequency", "close_date", "start_date", "end_date", "months_since_active",
			"last_reply_date", "plan_name", "billings", "average_monthly_revenue",
			"advanced_api_access", "api_rate_limit_increase", "advanced_security")
		closeStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		startStart := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		endStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		replyStart := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
		for i, id := range ids {
			revenue := math.Exp(r.NormFloat64() + 5.5)
			t.Append(id,
				choose(r, freqChoices, freqWeights),
				closeStart.AddDate(0, 0, i).Format("2006-01-02"),
				startStart.AddDate(0, 0, i).Format("2006-01-02"),
				endStart.AddDate(0, 0, i).Format("2006-01-02"),
				randInt(r, 1, 48),
				replyStart.AddDate(0, 0, i).Format("2006-01-02"),
				choose(r, planChoices, planWeights),
				choose(r, billingChoices, billingWeights),
				strconv.FormatFloat(math.Round(revenue*100)/100, 'f', 2, 64),
				flag(r, 0.3),
				flag(r, 0.2),
				flag(r, 0.4),
			)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("no sample schema for source %q", name)
	}
}

// randInt returns an integer in [lo, hi).
func randInt(r *rand.Rand, lo, hi int64) int64 { return lo + r.Int63n(hi-lo) }

func choose(r *rand.Rand, values []string, weights []float64) string {
	x := r.Float64()
	acc := 0.0
	for i, w := range weights {
		acc += w
		if x < acc {
			return values[i]
		}
	}
	return values[len(values)-1]
}

func flag(r *rand.Rand, p float64) int64 {
	if r.Float64() < p {
		return 1
	}
	return 0
}
