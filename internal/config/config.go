package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Source files
	DataDir       string `mapstructure:"data_dir" yaml:"data_dir"`
	CustomersFile string `mapstructure:"customers_file" yaml:"customers_file"`
	ActivityFile  string `mapstructure:"activity_file" yaml:"activity_file"`
	PlansFile     string `mapstructure:"plans_file" yaml:"plans_file"`

	// Query backend
	BackendKind string `mapstructure:"backend_kind" yaml:"backend_kind"`
	BackendDSN  string `mapstructure:"backend_dsn" yaml:"backend_dsn"`

	// Sample data used when a source file is missing
	SampleSeed      int64 `mapstructure:"sample_seed" yaml:"sample_seed"`
	SampleCustomers int   `mapstructure:"sample_customers" yaml:"sample_customers"`

	// Query routing
	MaxQueryResults int `mapstructure:"max_query_results" yaml:"max_query_results"`
	DefaultTopLimit int `mapstructure:"default_top_limit" yaml:"default_top_limit"`
	QueryTimeoutSec int `mapstructure:"query_timeout_sec" yaml:"query_timeout_sec"`

	// Analysis thresholds
	AtRiskActivationThreshold        float64 `mapstructure:"at_risk_activation_threshold" yaml:"at_risk_activation_threshold"`
	HighValueRevenueThreshold        float64 `mapstructure:"high_value_revenue_threshold" yaml:"high_value_revenue_threshold"`
	LowEngagementActivationThreshold float64 `mapstructure:"low_engagement_activation_threshold" yaml:"low_engagement_activation_threshold"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// HTTP server
	ServerAddr     string  `mapstructure:"server_addr" yaml:"server_addr"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

var defaults = map[string]any{
	"data_dir":                            "data",
	"customers_file":                      "customer.csv",
	"activity_file":                       "customer_activity.csv",
	"plans_file":                          "plan.csv",
	"backend_kind":                        "sqlite",
	"backend_dsn":                         ":memory:",
	"sample_seed":                         42,
	"sample_customers":                    100,
	"max_query_results":                   100,
	"default_top_limit":                   10,
	"query_timeout_sec":                   30,
	"at_risk_activation_threshold":        0.3,
	"high_value_revenue_threshold":        500.0,
	"low_engagement_activation_threshold": 0.5,
	"log_level":                           "info",
	"log_format":                          "console",
	"server_addr":                         ":8080",
	"rate_limit_rps":                      5.0,
	"rate_limit_burst":                    10,
}

// Keys returns every configuration key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultPath returns ~/.usageql/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".usageql", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.usageql/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is read first and never overrides variables already set.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("USAGEQL")
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		// a missing file is created by Save; anything else is an error
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else if path, err := DefaultPath(); err == nil {
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Set validates val and assigns it to key.
func (c *Global) Set(key, val string) error {
	switch key {
	case "data_dir":
		c.DataDir = val
	case "customers_file":
		c.CustomersFile = val
	case "activity_file":
		c.ActivityFile = val
	case "plans_file":
		c.PlansFile = val
	case "backend_kind":
		switch strings.ToLower(val) {
		case "sqlite", "postgres":
			c.BackendKind = strings.ToLower(val)
		case "postgresql", "pg":
			c.BackendKind = "postgres"
		default:
			return fmt.Errorf("invalid backend_kind: %s (use sqlite or postgres)", val)
		}
	case "backend_dsn":
		c.BackendDSN = val
	case "sample_seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for sample_seed: %w", err)
		}
		c.SampleSeed = i
	case "sample_customers":
		return setPositive(&c.SampleCustomers, key, val)
	case "max_query_results":
		return setPositive(&c.MaxQueryResults, key, val)
	case "default_top_limit":
		return setPositive(&c.DefaultTopLimit, key, val)
	case "query_timeout_sec":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for query_timeout_sec: %v", val)
		}
		c.QueryTimeoutSec = i
	case "at_risk_activation_threshold":
		return setRatio(&c.AtRiskActivationThreshold, key, val)
	case "low_engagement_activation_threshold":
		return setRatio(&c.LowEngagementActivationThreshold, key, val)
	case "high_value_revenue_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for high_value_revenue_threshold: %v", val)
		}
		c.HighValueRevenueThreshold = f
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_format":
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	case "server_addr":
		c.ServerAddr = val
	case "rate_limit_rps":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid float for rate_limit_rps: %v", val)
		}
		c.RateLimitRPS = f
	case "rate_limit_burst":
		return setPositive(&c.RateLimitBurst, key, val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func setPositive(dst *int, key, val string) error {
	i, err := strconv.Atoi(val)
	if err != nil || i <= 0 {
		return fmt.Errorf("invalid positive int for %s: %v", key, val)
	}
	*dst = i
	return nil
}

func setRatio(dst *float64, key, val string) error {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < 0 || f > 1 {
		return fmt.Errorf("invalid ratio for %s: %v (use a value between 0 and 1)", key, val)
	}
	*dst = f
	return nil
}

var dsnPasswordRe = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// MaskDSN hides the password in a URL or key=value connection string.
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		return u.Redacted()
	}
	return dsnPasswordRe.ReplaceAllString(dsn, "${1}xxxxx")
}
