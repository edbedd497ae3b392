package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers the cooker CLI flags on a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

func configureFlags(flags *pflag.FlagSet) {
	flags.IntP("jobs", "n", 10, "Number of workloads to launch (overrides COOKER_NUM_JOBS)")
	flags.StringP("backend", "b", BackendKubernetes, "Execution backend: 'kubernetes' or 'docker' (overrides COOKER_BACKEND)")
	flags.String("metrics-port", "9090", "Port for /metrics, /healthz and /readyz, '0' disables (overrides METRICS_PORT)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error (overrides COOKER_LOG_LEVEL)")
}

// ApplyFlags overrides cfg with every flag set explicitly on the command line.
func ApplyFlags(flags *pflag.FlagSet, cfg *CookerConfig) error {
	if flags.Changed("jobs") {
		n, err := flags.GetInt("jobs")
		if err != nil {
			return err
		}
		cfg.NumJobs = n
	}
	if flags.Changed("backend") {
		b, err := flags.GetString("backend")
		if err != nil {
			return err
		}
		cfg.Backend = strings.ToLower(b)
	}
	if flags.Changed("metrics-port") {
		p, err := flags.GetString("metrics-port")
		if err != nil {
			return err
		}
		cfg.MetricsPort = p
	}
	if flags.Changed("log-level") {
		l, err := flags.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = ParseLevel(l)
	}
	return cfg.Validate()
}

// Validate checks the process-wide settings.
func (c *CookerConfig) Validate() error {
	if c.NumJobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.NumJobs)
	}
	switch c.Backend {
	case BackendKubernetes, BackendDocker:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendKubernetes, BackendDocker)
	}
	return nil
}

// MetricsEnabled reports whether the metrics and health server should run.
func (c *CookerConfig) MetricsEnabled() bool {
	return c.MetricsPort != "" && c.MetricsPort != "0"
}
