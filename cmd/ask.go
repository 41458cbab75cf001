package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/usageql-cli/internal/router"
	"github.com/KaramelBytes/usageql-cli/internal/utils"
)

var (
	askFile        string
	askJSON        bool
	askRows        int
	askDryRun      bool
	askConcurrency int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a plain-English question about the customer data",
	Long: `Classifies the question, runs the matching analysis and prints the answer,
the SQL that ran and the result table. Use --file to answer one question per
line, or --dry-run to show the SQL without loading any data.`,
	Example: `  usageql ask "Who are the top 5 customers by revenue?"
  usageql ask --file questions.txt --json
  usageql ask --dry-run "Tell me about Pro customers"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		questions, err := collectQuestions(args)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var rt *router.Router
		if askDryRun {
			c, err := currentConfig()
			if err != nil {
				return err
			}
			log := newLogger()
			defer func() { _ = log.Sync() }()
			rt = router.New(nil, routerOptions(c, log))
		} else {
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			rt = s.Router
		}

		results := answerAll(ctx, rt, questions, askConcurrency)
		out := cmd.OutOrStdout()
		if askJSON {
			var v any = results
			if len(results) == 1 {
				v = results[0]
			}
			b, err := utils.PrettyJSON(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		for i, res := range results {
			if len(results) > 1 {
				fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(results), res.Question)
			}
			printResult(out, res, askRows)
		}
		return nil
	},
}

func collectQuestions(args []string) ([]string, error) {
	var qs []string
	if askFile != "" {
		lines, err := utils.ReadLines(askFile)
		if err != nil {
			return nil, err
		}
		qs = append(qs, lines...)
	}
	if q := strings.TrimSpace(strings.Join(args, " ")); q != "" {
		qs = append(qs, q)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("no question given (pass it as an argument or use --file)")
	}
	return qs, nil
}

// answerAll processes questions with at most n in flight, keeping input order.
func answerAll(ctx context.Context, rt *router.Router, questions []string, n int) []router.QueryResult {
	results := make([]router.QueryResult, len(questions))
	var g errgroup.Group
	if n <= 0 {
		n = 1
	}
	g.SetLimit(n)
	for i, q := range questions {
		g.Go(func() error {
			results[i] = rt.ProcessQuery(ctx, q)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func printResult(out io.Writer, res router.QueryResult, maxRows int) {
	fmt.Fprintln(out, res.Answer)
	if res.SQL != "" {
		fmt.Fprintf(out, "\nSQL:\n%s\n", res.SQL)
	}
	if res.Data != nil {
		fmt.Fprintf(out, "\n%s", res.Data.Markdown(maxRows))
	}
	if res.Error != "" {
		fmt.Fprintf(out, "\n✗ %s\n", res.Error)
	}
	fmt.Fprintln(out)
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "read questions from a file, one per line")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print results as JSON")
	askCmd.Flags().IntVar(&askRows, "rows", 20, "maximum result rows to print")
	askCmd.Flags().BoolVar(&askDryRun, "dry-run", false, "show the SQL that would run without loading data")
	askCmd.Flags().IntVar(&askConcurrency, "concurrency", 4, "questions answered in parallel with --file")
}
