package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/usageql-cli/internal/utils"
)

var (
	schemaJSON bool
	peekRows   int
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables loaded into the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		names, err := s.Backend.GetAllTables(cmd.Context())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no tables)")
			return nil
		}
		for _, n := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", n)
		}
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema <table>",
	Short: "Show a table's columns and types",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		sc, err := s.Backend.GetTableSchema(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if schemaJSON {
			b, err := utils.PrettyJSON(sc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COLUMN\tTYPE")
		for i, c := range sc.Columns {
			fmt.Fprintf(w, "%s\t%s\n", c, sc.Types[i])
		}
		return w.Flush()
	},
}

var peekCmd = &cobra.Command{
	Use:   "peek <table>",
	Short: "Print the first rows of a loaded table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		t, err := s.Backend.SampleRows(cmd.Context(), args[0], peekRows)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), t.Markdown(peekRows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(peekCmd)
	schemaCmd.Flags().BoolVar(&schemaJSON, "json", false, "print the schema as JSON")
	peekCmd.Flags().IntVarP(&peekRows, "rows", "n", 5, "number of rows to print")
}
