package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/usageql-cli/internal/catalog"
	"github.com/KaramelBytes/usageql-cli/internal/utils"
)

var (
	queryColumns []string
	queryWhere   []string
	queryOrderBy string
	queryLimit   int
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query <table>",
	Short: "Run a filtered SELECT against one table",
	Long: `Builds a parameterized SELECT from flags. Identifiers are validated and
filter values are always bound, never spliced into the SQL.`,
	Example: `  usageql query customer_summary --columns customer_name,revenue_tier --where plan_name=Pro --order-by "average_monthly_revenue DESC" --limit 5`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := parseFilters(queryWhere)
		if err != nil {
			return err
		}
		q, err := catalog.BuildCustomQuery(args[0], queryColumns, filters, queryOrderBy, queryLimit)
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		t, err := s.Backend.ExecuteQuery(cmd.Context(), q.SQL, q.Args...)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if queryJSON {
			b, err := utils.PrettyJSON(t)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprintf(out, "%s\n\n%s", q.Display(), t.Markdown(0))
		return nil
	},
}

// parseFilters reads key=value pairs. Values that parse as numbers or
// booleans are bound as such; "null" matches IS NULL.
func parseFilters(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --where %q (use column=value)", p)
		}
		out[strings.TrimSpace(k)] = filterValue(v)
	}
	return out, nil
}

func filterValue(v string) any {
	if strings.EqualFold(v, "null") {
		return nil
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if strings.EqualFold(v, "true") || strings.EqualFold(v, "false") {
		return strings.EqualFold(v, "true")
	}
	return v
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringSliceVarP(&queryColumns, "columns", "c", nil, "columns to select (default all)")
	queryCmd.Flags().StringArrayVarP(&queryWhere, "where", "w", nil, "equality filter column=value (repeatable)")
	queryCmd.Flags().StringVar(&queryOrderBy, "order-by", "", "column to order by, optionally followed by ASC or DESC")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "maximum rows (0 = no limit)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the result as JSON")
}
