package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	"github.com/KaramelBytes/usageql-cli/internal/utils"
)

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate <sql>",
	Short: "Check a SQL statement for mutating or dangerous keywords",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := backend.ValidateQuery(strings.Join(args, " "))
		out := cmd.OutOrStdout()
		if validateJSON {
			b, err := utils.PrettyJSON(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprintf(out, "type: %s\nvalid: %t\nsafe: %t\n", v.QueryType, v.IsValid, v.IsSafe)
		for _, w := range v.Warnings {
			fmt.Fprintf(out, "⚠ %s\n", w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the result as JSON")
}
