package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/usageql-cli/internal/catalog"
	"github.com/KaramelBytes/usageql-cli/internal/router"
)

var analysesShowSQL bool

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "List the analyses questions are routed to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		c, err := currentConfig()
		if err != nil {
			return err
		}
		p := routerOptions(c, nil).Params
		if p == (catalog.Params{}) {
			p = catalog.DefaultParams()
		}
		for _, e := range catalog.Analyses() {
			fmt.Fprintf(out, "- %s [%s]: %s\n", e.Name, e.Category, e.Description)
			if !analysesShowSQL {
				continue
			}
			q, err := catalog.Get(e.Name, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%s\n\n", q.Display())
		}
		return nil
	},
}

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Print example questions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, q := range router.New(nil, router.Options{}).ExampleQuestions() {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", q)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analysesCmd)
	rootCmd.AddCommand(examplesCmd)
	analysesCmd.Flags().BoolVar(&analysesShowSQL, "sql", false, "also print each analysis' SQL with configured thresholds")
}
