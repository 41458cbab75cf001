package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/usageql-cli/internal/pipeline"
	"github.com/KaramelBytes/usageql-cli/internal/utils"
)

var (
	ingestOutput string
	ingestJSON   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load, clean and join the source files into the backend",
	Long: `Loads the customer, activity and plan exports from the data directory (missing
files are replaced by deterministic sample data), cleans them, builds the unified
table and analytical views, and loads everything into the configured backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagSkipIngest {
			return fmt.Errorf("--skip-ingest cannot be used with ingest")
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		res := s.Result

		if ingestOutput != "" {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(ingestOutput, b); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}
		out := cmd.OutOrStdout()
		if ingestJSON {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		printIngest(out, res)
		if ingestOutput != "" {
			fmt.Fprintf(out, "✓ Report written to %s\n", ingestOutput)
		}
		return nil
	},
}

func printIngest(out io.Writer, res *pipeline.Result) {
	fmt.Fprintf(out, "Run %s (%s)\n\n", res.RunID, res.Duration.Round(time.Millisecond))
	fmt.Fprintln(out, "Sources:")
	for _, src := range res.Sources {
		note := ""
		if src.Error != "" {
			note = " (" + src.Error + ")"
		}
		fmt.Fprintf(out, "- %s: %d rows from %s%s\n", src.Name, src.Rows, src.Provenance, note)
	}
	if res.Synthetic() {
		fmt.Fprintln(out, "⚠ Some sources were replaced by sample data.")
	}

	fmt.Fprintln(out, "\nCleaning:")
	names := make([]string, 0, len(res.Reports))
	for n := range res.Reports {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		r := res.Reports[n]
		fmt.Fprintf(out, "- %s: %d → %d rows, %d duplicates dropped, %d names filled, %d values clamped, %d coercion fallbacks\n",
			n, r.InputRows, r.OutputRows, r.DuplicatesDropped, r.NamesFilled, r.Clamped, r.CoercionFallbacks)
	}

	fmt.Fprintln(out, "\nTables:")
	for _, n := range res.Summary.TableNames() {
		st := res.Summary.Tables[n]
		fmt.Fprintf(out, "- %s: %d rows × %d columns\n", n, st.RowCount, st.ColumnCount)
	}

	ov := res.Summary.Overview
	fmt.Fprintf(out, "\nCustomers: %d\n", res.Summary.TotalCustomers)
	fmt.Fprintf(out, "Total MRR: $%.2f (average $%.2f)\n", ov.TotalMRR, ov.AvgMRR)
	if len(ov.PlanDistribution) > 0 {
		plans := make([]string, 0, len(ov.PlanDistribution))
		for p := range ov.PlanDistribution {
			plans = append(plans, p)
		}
		sort.Strings(plans)
		fmt.Fprint(out, "Plans:")
		for _, p := range plans {
			fmt.Fprintf(out, " %s=%d", p, ov.PlanDistribution[p])
		}
		fmt.Fprintln(out)
	}
	if res.Loaded {
		fmt.Fprintln(out, "✓ Tables loaded into backend")
	}
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestOutput, "output", "o", "", "write the ingest report as JSON to this path")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the ingest report as JSON")
}
