package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/usageql-cli/internal/dataset"
	"github.com/KaramelBytes/usageql-cli/internal/table"
	"github.com/KaramelBytes/usageql-cli/internal/utils"
)

var (
	sampleRows   int
	sampleWrite  bool
	sampleFormat string
)

var sampleCmd = &cobra.Command{
	Use:       "sample <customers|activity|plans>",
	Short:     "Print the deterministic sample table used when a source file is missing",
	Args:      cobra.ExactArgs(1),
	ValidArgs: dataset.SourceNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToLower(args[0])
		if !isSource(name) {
			return fmt.Errorf("unknown source %q (use %s)", args[0], strings.Join(dataset.SourceNames, ", "))
		}
		c, err := currentConfig()
		if err != nil {
			return err
		}
		gen := pipelineOptions(c, nil, nil).Generator
		t, err := gen.Generate(name)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if sampleWrite {
			files := pipelineOptions(c, nil, nil).Files
			path := filepath.Join(c.DataDir, files[name])
			if err := dataset.WriteCSV(path, t); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote %d rows to %s\n", t.Len(), path)
			return nil
		}
		switch sampleFormat {
		case "json":
			b, err := utils.PrettyJSON(head(t, sampleRows))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		case "", "markdown", "md":
			fmt.Fprint(out, t.Markdown(sampleRows))
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown or json)", sampleFormat)
		}
		return nil
	},
}

func isSource(name string) bool {
	for _, s := range dataset.SourceNames {
		if s == name {
			return true
		}
	}
	return false
}

func head(t *table.Table, n int) *table.Table {
	if n <= 0 || t.Len() <= n {
		return t
	}
	h := table.New(t.Name, t.Columns...)
	h.Rows = t.Rows[:n]
	return h
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().IntVarP(&sampleRows, "rows", "n", 10, "rows to print (0 = all)")
	sampleCmd.Flags().BoolVar(&sampleWrite, "write", false, "write the sample as a CSV into the data directory")
	sampleCmd.Flags().StringVar(&sampleFormat, "format", "markdown", "output format: markdown | json")
}
