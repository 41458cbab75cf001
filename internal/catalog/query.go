package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Query is SQL text with ? placeholders and the values bound to them.
type Query struct {
	Name string
	SQL  string
	Args []any
}

// Display returns the SQL with each placeholder replaced by its value as a
// quoted SQL literal. It is for showing to users; execution always binds Args.
func (q Query) Display() string {
	i := 0
	out := walkPlaceholders(q.SQL, func() string {
		if i >= len(q.Args) {
			return "?"
		}
		v := q.Args[i]
		i++
		return Literal(v)
	})
	return strings.TrimSpace(out)
}

// Literal renders v as a SQL literal. Single quotes in text are doubled.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return "'" + x.Format("2006-01-02") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(x), "'", "''") + "'"
	}
}

// Rebind rewrites ? placeholders to the numbered $1, $2, ... form.
// Placeholders inside quoted literals are left alone.
func Rebind(sql string) string {
	n := 0
	return walkPlaceholders(sql, func() string {
		n++
		return "$" + strconv.Itoa(n)
	})
}

// walkPlaceholders replaces every ? outside single- or double-quoted
// sections with the result of repl.
func walkPlaceholders(sql string, repl func() string) string {
	var b strings.Builder
	b.Grow(len(sql))
	var quote rune
	for _, r := range sql {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			b.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(r)
		case r == '?':
			b.WriteString(repl())
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
