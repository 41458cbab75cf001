package backend

import (
	"math"
	"time"

	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// Kind is the storage class inferred for a table column.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindReal
	KindBool
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// InferKinds picks one storage class per column from its non-null cells.
// Integers mixed with floats widen to real; any other mix falls back to text.
// A column with no values is text.
func InferKinds(t *table.Table) []Kind {
	kinds := make([]Kind, len(t.Columns))
	for c := range t.Columns {
		var seen bool
		var k Kind
		for _, row := range t.Rows {
			if c >= len(row) || row[c] == nil {
				continue
			}
			ck := cellKind(row[c])
			switch {
			case !seen:
				k, seen = ck, true
			case k == ck:
			case (k == KindInteger && ck == KindReal) || (k == KindReal && ck == KindInteger):
				k = KindReal
			default:
				k = KindText
			}
			if k == KindText {
				break
			}
		}
		kinds[c] = k
	}
	return kinds
}

func cellKind(v any) Kind {
	switch v.(type) {
	case int64, int, int32:
		return KindInteger
	case float64, float32:
		return KindReal
	case bool:
		return KindBool
	case time.Time:
		return KindDate
	default:
		return KindText
	}
}

// Coerce converts a cell to the Go type stored for kind k.
func Coerce(v any, k Kind) any {
	if v == nil {
		return nil
	}
	switch k {
	case KindInteger:
		f, ok := table.Float(v)
		if !ok {
			return nil
		}
		return int64(f)
	case KindReal:
		f, ok := table.Float(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil
		}
		return b
	case KindDate:
		d, ok := v.(time.Time)
		if !ok {
			return nil
		}
		return d
	default:
		return table.String(v)
	}
}
