package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/usageql-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set UsageQL configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "data_dir: %s\n", c.DataDir)
		fmt.Fprintf(out, "customers_file: %s\n", c.CustomersFile)
		fmt.Fprintf(out, "activity_file: %s\n", c.ActivityFile)
		fmt.Fprintf(out, "plans_file: %s\n", c.PlansFile)
		fmt.Fprintf(out, "backend_kind: %s\n", c.BackendKind)
		fmt.Fprintf(out, "backend_dsn: %s\n", cfgpkg.MaskDSN(c.BackendDSN))
		fmt.Fprintf(out, "sample_seed: %d\n", c.SampleSeed)
		fmt.Fprintf(out, "sample_customers: %d\n", c.SampleCustomers)
		fmt.Fprintf(out, "max_query_results: %d\n", c.MaxQueryResults)
		fmt.Fprintf(out, "default_top_limit: %d\n", c.DefaultTopLimit)
		fmt.Fprintf(out, "query_timeout_sec: %d\n", c.QueryTimeoutSec)
		fmt.Fprintf(out, "at_risk_activation_threshold: %.3f\n", c.AtRiskActivationThreshold)
		fmt.Fprintf(out, "high_value_revenue_threshold: %.2f\n", c.HighValueRevenueThreshold)
		fmt.Fprintf(out, "low_engagement_activation_threshold: %.3f\n", c.LowEngagementActivationThreshold)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", c.LogFormat)
		fmt.Fprintf(out, "server_addr: %s\n", c.ServerAddr)
		fmt.Fprintf(out, "rate_limit_rps: %.2f\n", c.RateLimitRPS)
		fmt.Fprintf(out, "rate_limit_burst: %d\n", c.RateLimitBurst)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Start from the file and env only, so CLI overrides are not persisted.
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
