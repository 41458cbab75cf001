package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalidIdentifier is returned when a table, column or ordering name is
// not a plain SQL identifier.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdent(kind, s string) error {
	if !identRe.MatchString(s) {
		return fmt.Errorf("%w: %s %q", ErrInvalidIdentifier, kind, s)
	}
	return nil
}

// BuildCustomQuery builds a SELECT over one table. Filters are equality
// conditions joined with AND, applied in column-name order, with every value
// bound as a parameter. orderBy is a column optionally followed by ASC or DESC.
// An empty column list selects all columns; limit <= 0 means no limit.
func BuildCustomQuery(tableName string, columns []string, filters map[string]any, orderBy string, limit int) (Query, error) {
	if err := checkIdent("table", tableName); err != nil {
		return Query{}, err
	}
	for _, c := range columns {
		if err := checkIdent("column", c); err != nil {
			return Query{}, err
		}
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(columns) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(columns, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(tableName)

	var args []any
	if len(filters) > 0 {
		keys := make([]string, 0, len(filters))
		for k := range filters {
			if err := checkIdent("filter column", k); err != nil {
				return Query{}, err
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		conds := make([]string, len(keys))
		for i, k := range keys {
			if filters[k] == nil {
				conds[i] = k + " IS NULL"
				continue
			}
			conds[i] = k + " = ?"
			args = append(args, filters[k])
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if orderBy = strings.TrimSpace(orderBy); orderBy != "" {
		parts := strings.Fields(orderBy)
		if len(parts) > 2 {
			return Query{}, fmt.Errorf("%w: order by %q", ErrInvalidIdentifier, orderBy)
		}
		if err := checkIdent("order by column", parts[0]); err != nil {
			return Query{}, err
		}
		clause := parts[0]
		if len(parts) == 2 {
			dir := strings.ToUpper(parts[1])
			if dir != "ASC" && dir != "DESC" {
				return Query{}, fmt.Errorf("%w: order direction %q", ErrInvalidIdentifier, parts[1])
			}
			clause += " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(clause)
	}
	if limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return Query{SQL: b.String(), Args: args}, nil
}

// PlanFilteredQuery names queries built by PlanFiltered.
const PlanFilteredQuery = "plan_filtered"

// PlanFiltered returns customers of one plan from the customer_summary view,
// highest revenue first.
func PlanFiltered(plan string) Query {
	q, err := BuildCustomQuery("customer_summary",
		[]string{"customer_id", "customer_name", "plan_name", "average_monthly_revenue", "billings", "revenue_tier"},
		map[string]any{"plan_name": plan}, "average_monthly_revenue DESC", 0)
	if err != nil {
		// identifiers above are constant
		panic(err)
	}
	q.Name = PlanFilteredQuery
	return q
}
