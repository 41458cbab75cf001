package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	_ "github.com/KaramelBytes/usageql-cli/internal/backend/postgres"
	_ "github.com/KaramelBytes/usageql-cli/internal/backend/sqlite"
	"github.com/KaramelBytes/usageql-cli/internal/catalog"
	cfgpkg "github.com/KaramelBytes/usageql-cli/internal/config"
	"github.com/KaramelBytes/usageql-cli/internal/dataset"
	"github.com/KaramelBytes/usageql-cli/internal/logging"
	"github.com/KaramelBytes/usageql-cli/internal/pipeline"
	"github.com/KaramelBytes/usageql-cli/internal/router"
)

var (
	cfgFile string
	debug   bool
	// Data/backend flags (override config if set)
	flagDataDir    string
	flagBackend    string
	flagDSN        string
	flagSkipIngest bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "usageql",
	Short: "UsageQL: ask plain-English questions about customer usage data",
	Long: `UsageQL loads customer, activity and plan exports, cleans and joins them into
analytical tables, and answers plain-English questions by running a curated
catalog of SQL analyses against SQLite or PostgreSQL.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.usageql/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory holding the CSV exports (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "query backend: sqlite | postgres (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDSN, "dsn", "", "backend connection string (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagSkipIngest, "skip-ingest", false, "query tables already loaded in a persistent backend instead of re-ingesting")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults so read-only commands still work
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{}
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if f.Changed("backend") {
		if err := cfg.Set("backend_kind", flagBackend); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
		}
	}
	if f.Changed("dsn") {
		cfg.BackendDSN = flagDSN
	}
	if debug {
		cfg.LogLevel = "debug"
	}
}

// currentConfig returns the loaded config, loading it if no command hook ran.
func currentConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	return cfg, nil
}

func newLogger() *zap.Logger {
	c, err := currentConfig()
	if err != nil {
		return zap.NewNop()
	}
	l, err := logging.New(c.LogLevel, c.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
		return zap.NewNop()
	}
	return l
}

// session is a loaded backend plus the router over it.
type session struct {
	Backend *backend.Serialized
	Result  *pipeline.Result
	Router  *router.Router
	Log     *zap.Logger
}

func (s *session) Close() {
	if s.Router != nil {
		_ = s.Router.Close()
	}
	_ = s.Backend.Close()
	_ = s.Log.Sync()
}

func routerOptions(c *cfgpkg.Global, log *zap.Logger) router.Options {
	return router.Options{
		Params: catalog.Params{
			Limit:                   c.DefaultTopLimit,
			AtRiskActivation:        c.AtRiskActivationThreshold,
			HighValueRevenue:        c.HighValueRevenueThreshold,
			LowEngagementActivation: c.LowEngagementActivationThreshold,
		},
		MaxResults: c.MaxQueryResults,
		Timeout:    time.Duration(c.QueryTimeoutSec) * time.Second,
		Sample:     sampleGenerator(c),
		Logger:     log,
	}
}

func pipelineOptions(c *cfgpkg.Global, b backend.Backend, log *zap.Logger) pipeline.Options {
	files := dataset.DefaultFiles()
	if c.CustomersFile != "" {
		files[dataset.Customers] = c.CustomersFile
	}
	if c.ActivityFile != "" {
		files[dataset.Activity] = c.ActivityFile
	}
	if c.PlansFile != "" {
		files[dataset.Plans] = c.PlansFile
	}
	return pipeline.Options{DataDir: c.DataDir, Files: files, Generator: sampleGenerator(c), Backend: b, Logger: log}
}

func sampleGenerator(c *cfgpkg.Global) dataset.SeededGenerator {
	if c.SampleCustomers > 0 {
		return dataset.SeededGenerator{Seed: c.SampleSeed, Customers: c.SampleCustomers}
	}
	return dataset.DefaultGenerator()
}

// openSession opens the configured backend and, unless --skip-ingest is set,
// runs the ingest pipeline into it.
func openSession(ctx context.Context) (*session, error) {
	c, err := currentConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger()
	kind := c.BackendKind
	if kind == "" {
		kind = "sqlite"
	}
	b, err := backend.Open(ctx, backend.Config{Kind: kind, DSN: c.BackendDSN, Logger: log})
	if err != nil {
		return nil, err
	}
	s := &session{Backend: b, Log: log}
	if !flagSkipIngest {
		res, err := pipeline.Run(ctx, pipelineOptions(c, b, log))
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Result = res
	}
	s.Router = router.New(b, routerOptions(c, log))
	return s, nil
}
