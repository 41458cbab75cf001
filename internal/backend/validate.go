package backend

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation is the heuristic assessment of a SQL statement. It never blocks
// execution on its own.
type Validation struct {
	IsValid   bool     `json:"is_valid"`
	IsSafe    bool     `json:"is_safe"`
	QueryType string   `json:"query_type"`
	Warnings  []string `json:"warnings"`
}

var (
	leadingKeyword    = regexp.MustCompile(`^\s*([A-Za-z]+)`)
	dangerousKeywords = []string{"DROP", "DELETE", "TRUNCATE", "ALTER"}
	dangerousRe       = map[string]*regexp.Regexp{}
)

func init() {
	for _, k := range dangerousKeywords {
		dangerousRe[k] = regexp.MustCompile(`(?i)\b` + k + `\b`)
	}
}

// ValidateQuery classifies sql by its leading keyword and flags mutating
// statement types and the keywords DROP, DELETE, TRUNCATE and ALTER.
func ValidateQuery(sql string) Validation {
	v := Validation{IsValid: true, IsSafe: true, QueryType: "UNKNOWN", Warnings: []string{}}
	if strings.TrimSpace(sql) == "" {
		v.IsValid = false
		v.IsSafe = false
		v.QueryType = "EMPTY"
		v.Warnings = append(v.Warnings, "empty query")
		return v
	}
	if m := leadingKeyword.FindStringSubmatch(sql); m != nil {
		switch kw := strings.ToUpper(m[1]); kw {
		case "SELECT", "WITH":
			v.QueryType = "SELECT"
		case "INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE":
			v.QueryType = kw
			v.IsSafe = false
			v.Warnings = append(v.Warnings, "potentially unsafe query type detected")
		}
	}
	for _, k := range dangerousKeywords {
		if dangerousRe[k].MatchString(sql) {
			v.IsSafe = false
			v.Warnings = append(v.Warnings, fmt.Sprintf("dangerous keyword %q detected", k))
		}
	}
	return v
}
