// Package unify joins the cleaned source tables into one relation and derives
// the analytical views served to the query backend.
package unify

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/usageql-cli/internal/dataset"
	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// UnifiedName is the backend table name of the joined relation.
const UnifiedName = "unified"

// ErrNoCustomers indicates the customers table is absent.
var ErrNoCustomers = errors.New("unify: customers table is required")

// Unify left-joins activity and then plans onto customers by customer_id.
// Every customer appears exactly once; a missing activity or plan row leaves
// its columns nil. When a right-hand table repeats a customer_id, the first
// row wins.
func Unify(clean map[string]*table.Table) (*table.Table, error) {
	base, ok := clean[dataset.Customers]
	if !ok || base == nil {
		return nil, ErrNoCustomers
	}
	if base.Index(dataset.KeyColumn) < 0 {
		return nil, fmt.Errorf("unify: customers: %w: %s", dataset.ErrMissingColumn, dataset.KeyColumn)
	}
	out := base.Clone()
	out.Name = UnifiedName
	for _, name := range []string{dataset.Activity, dataset.Plans} {
		right, ok := clean[name]
		if !ok || right == nil {
			continue
		}
		var err error
		out, err = leftJoin(out, right, dataset.KeyColumn, name)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func leftJoin(left, right *table.Table, key, rightName string) (*table.Table, error) {
	lk, rk := left.Index(key), right.Index(key)
	if rk < 0 {
		return nil, fmt.Errorf("unify: %s: %w: %s", rightName, dataset.ErrMissingColumn, key)
	}
	// Right-hand columns, minus the key, renamed on collision.
	var rightIdx []int
	cols := append([]string{}, left.Columns...)
	for i, c := range right.Columns {
		if i == rk {
			continue
		}
		name := c
		if left.Index(c) >= 0 {
			name = c + "_" + rightName
		}
		cols = append(cols, name)
		rightIdx = append(rightIdx, i)
	}
	index := make(map[string][]any, len(right.Rows))
	for _, row := range right.Rows {
		if rk >= len(row) || row[rk] == nil {
			continue
		}
		k := table.String(row[rk])
		if _, dup := index[k]; !dup {
			index[k] = row
		}
	}
	out := table.New(left.Name, cols...)
	out.Rows = make([][]any, 0, len(left.Rows))
	for _, lrow := range left.Rows {
		row := make([]any, len(cols))
		copy(row, lrow)
		if lrow[lk] != nil {
			if rrow, ok := index[table.String(lrow[lk])]; ok {
				for j, i := range rightIdx {
					if i < len(rrow) {
						row[len(left.Columns)+j] = rrow[i]
					}
				}
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
