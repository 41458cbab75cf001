package dataset

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// CleanReport records what cleaning changed in one table.
type CleanReport struct {
	Table             string `json:"table"`
	InputRows         int    `json:"input_rows"`
	OutputRows        int    `json:"output_rows"`
	DuplicatesDropped int    `json:"duplicates_dropped"`
	NamesFilled       int    `json:"names_filled"`
	Clamped           int    `json:"clamped"`
	CoercionFallbacks int    `json:"coercion_fallbacks"`
}

// Cleaned holds the normalized tables and their cleaning reports.
type Cleaned struct {
	Tables  map[string]*table.Table
	Reports map[string]CleanReport
}

// Normalize repairs each raw table according to its source rules. Input tables
// are not modified. Value-level problems are repaired with defaults and counted
// in the report; an error is returned only when a table lacks customer_id.
// Normalizing an already-normalized table returns an identical table.
func Normalize(raw map[string]*table.Table, log *zap.Logger) (*Cleaned, error) {
	if log == nil {
		log = zap.NewNop()
	}
	out := &Cleaned{
		Tables:  make(map[string]*table.Table, len(raw)),
		Reports: make(map[string]CleanReport, len(raw)),
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		src := raw[name]
		if src == nil {
			continue
		}
		t := src.Clone()
		t.Name = name
		for i, row := range t.Rows {
			if len(row) < len(t.Columns) {
				t.Rows[i] = append(row, make([]any, len(t.Columns)-len(row))...)
			}
		}
		rep := CleanReport{Table: name, InputRows: t.Len()}
		switch name {
		case Customers, Activity, Plans:
			if t.Index(KeyColumn) < 0 {
				return nil, fmt.Errorf("clean %s: %w: %s", name, ErrMissingColumn, KeyColumn)
			}
			normalizeKeys(t)
		}
		switch name {
		case Customers:
			t = cleanCustomers(t, &rep)
		case Activity:
			cleanActivity(t, &rep)
		case Plans:
			cleanPlans(t, &rep)
		}
		rep.OutputRows = t.Len()
		if rep.DuplicatesDropped > 0 {
			log.Info("removed duplicate records", zap.String("table", name), zap.Int("count", rep.DuplicatesDropped))
		}
		if rep.Clamped > 0 {
			log.Info("clamped user counts", zap.String("table", name), zap.Int("count", rep.Clamped))
		}
		if rep.CoercionFallbacks > 0 {
			log.Warn("values replaced by defaults", zap.String("table", name), zap.Int("count", rep.CoercionFallbacks))
		}
		log.Debug("cleaned table", zap.String("table", name), zap.Int("rows", rep.OutputRows))
		out.Tables[name] = t
		out.Reports[name] = rep
	}
	return out, nil
}

// normalizeKeys stores customer_id as trimmed text so joins compare like with like.
func normalizeKeys(t *table.Table) {
	i := t.Index(KeyColumn)
	for _, row := range t.Rows {
		if row[i] != nil {
			row[i] = table.String(row[i])
		}
	}
}

func cleanCustomers(t *table.Table, rep *CleanReport) *table.Table {
	if t.Index("customer_name") < 0 {
		t.AddColumn("customer_name", func(int) any { return nil })
	}
	name := t.Index("customer_name")
	for _, row := range t.Rows {
		if table.String(row[name]) == "" {
			row[name] = UnknownCustomer
			rep.NamesFilled++
		} else if _, ok := row[name].(string); !ok {
			row[name] = table.String(row[name])
		}
	}
	key := t.Index(KeyColumn)
	seen := make(map[string]bool, len(t.Rows))
	kept := t.Rows[:0:0]
	for _, row := range t.Rows {
		k := table.String(row[key])
		if seen[k] {
			rep.DuplicatesDropped++
			continue
		}
		seen[k] = true
		kept = append(kept, row)
	}
	t.Rows = kept
	return t
}

func cleanActivity(t *table.Table, rep *CleanReport) {
	cols := append(append([]string{}, activityStringNumeric...), activityCounts...)
	for _, c := range cols {
		i := t.Index(c)
		if i < 0 {
			continue
		}
		for _, row := range t.Rows {
			n, ok := coerceCount(row[i])
			if !ok {
				rep.CoercionFallbacks++
			}
			row[i] = n
		}
	}
	clamp := func(col string) {
		i, limit := t.Index(col), t.Index("regular_users")
		if i < 0 || limit < 0 {
			return
		}
		for _, row := range t.Rows {
			v, lim := row[i].(int64), row[limit].(int64)
			if v > lim {
				row[i] = lim
				rep.Clamped++
			}
		}
	}
	clamp("monthly_active_users")
	clamp("paid_users")
}

func cleanPlans(t *table.Table, rep *CleanReport) {
	for _, c := range planDates {
		i := t.Index(c)
		if i < 0 {
			continue
		}
		for _, row := range t.Rows {
			if row[i] == nil {
				continue
			}
			d, ok := parseDate(row[i])
			if !ok {
				rep.CoercionFallbacks++
				row[i] = nil
				continue
			}
			row[i] = d
		}
	}
	if i := t.Index("average_monthly_revenue"); i >= 0 {
		for _, row := range t.Rows {
			f, ok := parseCurrency(row[i])
			if !ok {
				rep.CoercionFallbacks++
			}
			if f < 0 {
				f = 0
			}
			row[i] = f
		}
	}
	if i := t.Index("months_since_active"); i >= 0 {
		for _, row := range t.Rows {
			n, ok := coerceCount(row[i])
			if !ok {
				rep.CoercionFallbacks++
			}
			if n < 0 {
				n = 0
			}
			row[i] = n
		}
	}
	mapEnum := func(col string, variants map[string]string) {
		i := t.Index(col)
		if i < 0 {
			return
		}
		for _, row := range t.Rows {
			row[i] = canonicalize(row[i], variants)
		}
	}
	mapEnum("plan_name", planNames)
	mapEnum("billings", billingStates)
	mapEnum("payment_frequency", paymentFrequencies)
	for _, c := range planFlags {
		i := t.Index(c)
		if i < 0 {
			continue
		}
		for _, row := range t.Rows {
			row[i] = parseFlag(row[i])
		}
	}
}
