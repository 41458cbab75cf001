package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/usageql-cli/internal/analysis"
	"github.com/KaramelBytes/usageql-cli/internal/catalog"
	"github.com/KaramelBytes/usageql-cli/internal/utils"
)

var (
	profileGroupBy  string
	profileTopN     int
	profileSample   int
	profileNoCorr   bool
	profileOutlierZ float64
	profileJSON     bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <table>",
	Short: "Summarize every column of a loaded table",
	Long: `Reads the whole table from the backend and reports per-column kinds,
missing values, numeric statistics with robust outlier counts, top
categories, Pearson correlations and optional group-by means.`,
	Example: `  usageql profile customer_summary --group-by plan_name`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := catalog.BuildCustomQuery(args[0], nil, nil, "", 0)
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
		t.Name = args[0]

		opt := analysis.DefaultOptions()
		opt.GroupBy = profileGroupBy
		opt.TopValues = profileTopN
		opt.SampleRows = profileSample
		opt.Correlations = !profileNoCorr
		opt.OutlierThreshold = profileOutlierZ
		rep := analysis.Profile(t, opt)

		out := cmd.OutOrStdout()
		if profileJSON {
			b, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprint(out, rep.Markdown())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVar(&profileGroupBy, "group-by", "", "column whose values split numeric means")
	profileCmd.Flags().IntVar(&profileTopN, "top", 8, "top categories kept per categorical column")
	profileCmd.Flags().IntVar(&profileSample, "sample", 5, "sample rows included in the report")
	profileCmd.Flags().BoolVar(&profileNoCorr, "no-corr", false, "skip correlation matrix")
	profileCmd.Flags().Float64Var(&profileOutlierZ, "outlier-z", 3.5, "robust z-score threshold for outliers")
	profileCmd.Flags().BoolVar(&profileJSON, "json", false, "print the report as JSON")
}
