// Package analysis profiles loaded tables: per-column statistics, robust
// outlier counts, Pearson correlations and optional group-by means.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// Options controls profiling.
type Options struct {
	// SampleRows is the number of leading rows included in the report.
	SampleRows int
	// TopValues caps the value counts kept for categorical columns.
	TopValues int
	// GroupBy is an optional column whose values split the numeric means.
	GroupBy string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// Outlier detection via robust Z-score (MAD). Values with |z| above the
	// threshold are counted.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns sensible defaults for profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		TopValues:        8,
		Correlations:     true,
		Outliers:         true,
		OutlierThreshold: 3.5,
	}
}

// Report is a markdown-friendly profile of one table.
type Report struct {
	Name     string          `json:"name"`
	Rows     int             `json:"rows"`
	Cols     []ColumnSummary `json:"columns"`
	Samples  [][]string      `json:"samples,omitempty"`
	Groups   []GroupResult   `json:"groups,omitempty"`
	Corr     *CorrMatrix     `json:"correlations,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// ColumnSummary captures the inferred kind and statistics of one column.
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // numeric|boolean|datetime|categorical|text|empty
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique"`
	// Numeric stats
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Mean   float64 `json:"mean,omitempty"`
	Median float64 `json:"median,omitempty"`
	Std    float64 `json:"std,omitempty"`
	// Outliers (robust Z via MAD)
	OutliersCount    int     `json:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty"`
	// Date range, formatted 2006-01-02
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
	// Categorical top values
	TopValues    []CategoryCount `json:"top_values,omitempty"`
	ExampleTexts []string        `json:"examples,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// GroupResult holds numeric means for one value of the group-by column.
type GroupResult struct {
	Key   string             `json:"key"`
	Size  int                `json:"size"`
	Means map[string]float64 `json:"means"`
}

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"` // row-major, Values[i][j]
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

const maxExamples = 3

// Profile computes a report over every row of t.
func Profile(t *table.Table, opt Options) *Report {
	rep := &Report{Name: t.Name, Rows: t.Len()}
	kinds := backend.InferKinds(t)
	var numCols []int
	for c, name := range t.Columns {
		s := summarize(t, c, name, kinds[c], opt)
		if s.Kind == "numeric" {
			numCols = append(numCols, c)
		}
		rep.Cols = append(rep.Cols, s)
	}
	if n := opt.SampleRows; n > 0 {
		if n > t.Len() {
			n = t.Len()
		}
		for _, row := range t.Rows[:n] {
			cells := make([]string, len(t.Columns))
			for i := range cells {
				if i < len(row) {
					cells[i] = table.Format(row[i])
				}
			}
			rep.Samples = append(rep.Samples, cells)
		}
	}
	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = correlations(t, numCols)
	}
	if opt.GroupBy != "" {
		g := t.Index(opt.GroupBy)
		if g < 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("group-by column %q not found", opt.GroupBy))
		} else {
			rep.Groups = groupMeans(t, g, numCols)
		}
	}
	return rep
}

func summarize(t *table.Table, c int, name string, kind backend.Kind, opt Options) ColumnSummary {
	s := ColumnSummary{Name: name}
	counts := map[string]int{}
	var nums []float64
	var examples []string
	for _, row := range t.Rows {
		if c >= len(row) || row[c] == nil {
			s.Missing++
			continue
		}
		s.NonNull++
		key := table.Format(row[c])
		if counts[key] == 0 && len(examples) < maxExamples {
			examples = append(examples, key)
		}
		counts[key]++
		if f, ok := table.Float(row[c]); ok && (kind == backend.KindInteger || kind == backend.KindReal) {
			nums = append(nums, f)
		}
	}
	s.Unique = len(counts)
	switch {
	case s.NonNull == 0:
		s.Kind = "empty"
	case kind == backend.KindInteger || kind == backend.KindReal:
		s.Kind = "numeric"
		numericStats(&s, nums, opt)
	case kind == backend.KindBool:
		s.Kind = "boolean"
		s.TopValues = topValues(counts, 2)
	case kind == backend.KindDate:
		s.Kind = "datetime"
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		s.Earliest, s.Latest = keys[0], keys[len(keys)-1]
	case s.Unique*2 <= s.NonNull:
		s.Kind = "categorical"
		s.TopValues = topValues(counts, opt.TopValues)
	default:
		s.Kind = "text"
		s.ExampleTexts = examples
	}
	return s
}

func numericStats(s *ColumnSummary, vals []float64, opt Options) {
	if len(vals) == 0 {
		return
	}
	s.Min, s.Max = vals[0], vals[0]
	var sum float64
	for _, v := range vals {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		sum += v
	}
	s.Mean = sum / float64(len(vals))
	var ss float64
	for _, v := range vals {
		ss += (v - s.Mean) * (v - s.Mean)
	}
	if len(vals) > 1 {
		s.Std = math.Sqrt(ss / float64(len(vals)-1))
	}
	median, mad := medianMAD(vals)
	s.Median = median
	if !opt.Outliers || len(vals) < 8 {
		return
	}
	thr := opt.OutlierThreshold
	if thr <= 0 {
		thr = 3.5
	}
	s.OutlierThreshold = thr
	if mad == 0 {
		return
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			s.OutliersCount++
		}
		if az > s.OutliersMaxAbsZ {
			s.OutliersMaxAbsZ = az
		}
	}
}

func topValues(counts map[string]int, n int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if n > 0 && len(tops) > n {
		tops = tops[:n]
	}
	return tops
}

// correlations computes pairwise Pearson r over rows where both values are present.
func correlations(t *table.Table, cols []int) *CorrMatrix {
	m := &CorrMatrix{Values: make([][]float64, len(cols))}
	for i, c := range cols {
		m.Columns = append(m.Columns, t.Columns[c])
		m.Values[i] = make([]float64, len(cols))
	}
	for i := range cols {
		m.Values[i][i] = 1
		for j := i + 1; j < len(cols); j++ {
			r := pearson(t, cols[i], cols[j])
			m.Values[i][j], m.Values[j][i] = r, r
		}
	}
	return m
}

func pearson(t *table.Table, a, b int) float64 {
	var n, sumX, sumY, sumXX, sumYY, sumXY float64
	for _, row := range t.Rows {
		x, ok1 := table.Float(cell(row, a))
		y, ok2 := table.Float(cell(row, b))
		if !ok1 || !ok2 {
			continue
		}
		n++
		sumX += x
		sumY += y
		sumXX += x * x
		sumYY += y * y
		sumXY += x * y
	}
	if n < 2 {
		return 0
	}
	denom := math.Sqrt((n*sumXX - sumX*sumX) * (n*sumYY - sumY*sumY))
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func groupMeans(t *table.Table, g int, numCols []int) []GroupResult {
	type acc struct {
		size int
		sum  map[int]float64
		cnt  map[int]int
	}
	groups := map[string]*acc{}
	for _, row := range t.Rows {
		key := "(null)"
		if v := cell(row, g); v != nil {
			key = table.Format(v)
		}
		a := groups[key]
		if a == nil {
			a = &acc{sum: map[int]float64{}, cnt: map[int]int{}}
			groups[key] = a
		}
		a.size++
		for _, c := range numCols {
			if f, ok := table.Float(cell(row, c)); ok {
				a.sum[c] += f
				a.cnt[c]++
			}
		}
	}
	out := make([]GroupResult, 0, len(groups))
	for key, a := range groups {
		gr := GroupResult{Key: key, Size: a.size, Means: map[string]float64{}}
		for _, c := range numCols {
			if c == g || a.cnt[c] == 0 {
				continue
			}
			gr.Means[t.Columns[c]] = a.sum[c] / float64(a.cnt[c])
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// TopCorrelations returns up to n column pairs ordered by |r| descending.
func (r *Report) TopCorrelations(n int) []PairCorr {
	if r.Corr == nil {
		return nil
	}
	var pairs []PairCorr
	k := len(r.Corr.Columns)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			pairs = append(pairs, PairCorr{A: r.Corr.Columns[i], B: r.Corr.Columns[j], R: r.Corr.Values[i][j]})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if n > 0 && len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}

// Markdown renders a compact report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[TABLE PROFILE]\n")
	fmt.Fprintf(&b, "Table: %s\nRows: %d\nColumns: %d\n\n", r.Name, r.Rows, len(r.Cols))

	b.WriteString("[COLUMNS]\n")
	for _, c := range r.Cols {
		missPct := 0.0
		if total := c.NonNull + c.Missing; total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		fmt.Fprintf(&b, "- %s: %s (non-null %d, missing %.1f%%)", c.Name, c.Kind, c.NonNull, missPct)
		switch c.Kind {
		case "numeric":
			fmt.Fprintf(&b, " min %.4g, max %.4g, mean %.4g, median %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Median, c.Std)
			if c.OutlierThreshold > 0 {
				fmt.Fprintf(&b, "; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold)
			}
		case "datetime":
			fmt.Fprintf(&b, " from %s to %s", c.Earliest, c.Latest)
		case "categorical", "boolean":
			parts := make([]string, len(c.TopValues))
			for i, kv := range c.TopValues {
				parts[i] = fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count)
			}
			b.WriteString(" top: " + strings.Join(parts, ", "))
			if c.Unique > len(c.TopValues) {
				fmt.Fprintf(&b, "; unique=%d", c.Unique)
			}
		case "text":
			b.WriteString(" e.g. " + safeVal(strings.Join(c.ExampleTexts, " | ")))
		}
		b.WriteString("\n")
	}

	if pairs := r.TopCorrelations(10); len(pairs) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range pairs {
			fmt.Fprintf(&b, "- %s ~ %s: r=%.3f\n", p.A, p.B, p.R)
		}
	}
	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUP-BY MEANS]\n")
		for _, g := range r.Groups {
			fmt.Fprintf(&b, "- %s (n=%d)\n", g.Key, g.Size)
			keys := make([]string, 0, len(g.Means))
			for k := range g.Means {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "  • %s: %.4g\n", k, g.Means[k])
			}
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[SAMPLE ROWS]\n")
		sample := table.New(r.Name)
		for _, c := range r.Cols {
			sample.Columns = append(sample.Columns, c.Name)
		}
		for _, row := range r.Samples {
			cells := make([]any, len(row))
			for i, v := range row {
				cells[i] = v
			}
			sample.Append(cells...)
		}
		b.WriteString(sample.Markdown(0))
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

func cell(row []any, i int) any {
	if i < len(row) {
		return row[i]
	}
	return nil
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
