// Package router answers free-text questions by classifying them against an
// ordered list of intent rules and running the matching catalog analysis.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/usageql-cli/internal/catalog"
	"github.com/KaramelBytes/usageql-cli/internal/dataset"
	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// Executor runs a parameterized read query. backend.Backend satisfies it.
type Executor interface {
	ExecuteQuery(ctx context.Context, sql string, args ...any) (*table.Table, error)
}

// Options tunes query resolution and execution.
type Options struct {
	// Params holds the thresholds and default row limit bound into analyses.
	Params catalog.Params
	// MaxResults caps the "top N" limit read from a question.
	MaxResults int
	// Timeout bounds each execution. Zero means no timeout.
	Timeout time.Duration
	// Sample generates the tables used to answer when execution fails.
	// Nil means dataset.DefaultGenerator.
	Sample  dataset.Generator
	Logger  *zap.Logger
}

// Router is safe for concurrent use. Its only state is the sample database
// loaded on the first execution failure.
type Router struct {
	exec   Executor
	opts   Options
	log    *zap.Logger
	sample *sampleSource
}

// New returns a router over exec. A nil exec puts the router in preview
// mode: questions resolve to SQL but nothing is executed.
func New(exec Executor, opts Options) *Router {
	if opts.Params == (catalog.Params{}) {
		opts.Params = catalog.DefaultParams()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	gen := opts.Sample
	if gen == nil {
		gen = dataset.DefaultGenerator()
	}
	return &Router{exec: exec, opts: opts, log: log, sample: &sampleSource{gen: gen, log: log}}
}

// Close releases the sample database, if one was loaded.
func (r *Router) Close() error { return r.sample.close() }

// QueryResult is the answer to one question. SQL and Error encode as JSON
// null when empty.
type QueryResult struct {
	ID       string       `json:"id"`
	Question string       `json:"question"`
	Intent   string       `json:"intent,omitempty"`
	Analysis string       `json:"analysis,omitempty"`
	Answer   string       `json:"answer"`
	SQL      string       `json:"sql"`
	Data     *table.Table `json:"data"`
	Error    string       `json:"error"`
}

func (r QueryResult) MarshalJSON() ([]byte, error) {
	type plain QueryResult
	return json.Marshal(struct {
		plain
		SQL   *string `json:"sql"`
		Error *string `json:"error"`
	}{plain: plain(r), SQL: nullable(r.SQL), Error: nullable(r.Error)})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FallbackSQL is the sql note returned when no analysis matches.
const FallbackSQL = "-- No matching analysis for this question"

// ProcessQuery answers question. It never panics and never returns an error:
// failures are reported in QueryResult.Error with Data nil.
func (r *Router) ProcessQuery(ctx context.Context, question string) (res QueryResult) {
	res = QueryResult{ID: uuid.NewString(), Question: question}
	log := r.log.With(zap.String("query_id", res.ID))
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic while processing question", zap.Any("panic", p))
			res.Data = nil
			res.Error = fmt.Sprint(p)
			res.Answer = apology(res.Error)
		}
	}()

	intent, ok := classify(question, limits{def: r.opts.Params.Limit, max: r.opts.MaxResults})
	if !ok {
		log.Info("no analysis matched", zap.String("question", question))
		res.SQL = FallbackSQL
		res.Answer = fallbackAnswer(question)
		return res
	}
	q, err := r.resolve(intent)
	if err != nil {
		res.Error = err.Error()
		res.Answer = apology(res.Error)
		return res
	}
	res.Intent = intent.Name()
	res.Analysis = q.Name
	res.SQL = q.Display()
	log.Info("dispatching question", zap.String("intent", res.Intent), zap.String("analysis", res.Analysis))

	if r.exec == nil {
		res.Answer = previewAnswer(intent)
		return res
	}
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	data, err := r.exec.ExecuteQuery(ctx, q.SQL, q.Args...)
	if err != nil {
		log.Error("analysis failed", zap.String("analysis", res.Analysis), zap.Error(err))
		res.Error = err.Error()
		res.Answer = apology(res.Error)
		if sample, serr := r.sample.run(ctx, q); serr != nil {
			log.Warn("sample answer unavailable", zap.Error(serr))
		} else {
			res.Answer += "\n\n" + sampleAnswer(intent, sample)
		}
		return res
	}
	res.Data = data
	res.Answer = answer(intent, data)
	return res
}

// resolve maps an intent to its catalog query.
func (r *Router) resolve(in Intent) (catalog.Query, error) {
	p := r.opts.Params
	switch x := in.(type) {
	case TopRevenue:
		p.Limit = x.Limit
		return catalog.Get(catalog.TopRevenueCustomers, p)
	case UsageCorrelation:
		return catalog.Get(catalog.UsageByPlan, p)
	case PlanAnalysis:
		return catalog.Get(catalog.PlanPerformance, p)
	case Engagement:
		if x.HighValue {
			return catalog.Get(catalog.LowEngagementHighValue, p)
		}
		return catalog.Get(catalog.EngagementAnalysis, p)
	case AtRisk:
		return catalog.Get(catalog.AtRiskCustomers, p)
	case FeatureAdoption:
		return catalog.Get(catalog.FeatureAdoption, p)
	case Lifecycle:
		return catalog.Get(catalog.LifecycleAnalysis, p)
	case Insights:
		return catalog.Get(catalog.CustomerSegments, p)
	case PlanFiltered:
		return catalog.PlanFiltered(x.Plan), nil
	default:
		return catalog.Query{}, fmt.Errorf("no analysis for intent %T", in)
	}
}

// Resolve returns the query a question would run, without executing it.
func (r *Router) Resolve(question string) (Intent, catalog.Query, bool) {
	intent, ok := classify(question, limits{def: r.opts.Params.Limit, max: r.opts.MaxResults})
	if !ok {
		return nil, catalog.Query{}, false
	}
	q, err := r.resolve(intent)
	if err != nil {
		return nil, catalog.Query{}, false
	}
	return intent, q, true
}

// AvailableAnalyses maps analysis categories to descriptions.
func (r *Router) AvailableAnalyses() map[string]string { return catalog.Descriptions() }

// ExampleQuestions returns questions covering every analysis, in display order.
func (r *Router) ExampleQuestions() []string {
	out := make([]string, len(exampleQuestions))
	copy(out, exampleQuestions)
	return out
}

var exampleQuestions = []string{
	"Who are the top 10 customers by revenue?",
	"Is there a relationship between contacts and workflows?",
	"Compare performance across plans",
	"Which customers have the highest engagement?",
	"Which customers are at risk of churning?",
	"How widely are premium features adopted?",
	"Show me the customer lifecycle breakdown",
	"Which high-value customers have low engagement?",
	"Tell me about Pro customers",
	"Show me customer segments",
}
