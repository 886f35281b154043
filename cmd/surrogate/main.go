// surrogate answers expensive model evaluations from a calibrated
// nearest-neighbour approximation.
//
// Usage:
//
//	surrogate calibrate [--train=N] [--test=N] [--dim=D]
//	surrogate serve     [--addr=:8080]
//	surrogate bench     [--queries=N] [--delay=1ms]
//	surrogate runs      [--method=min_distance]
//	surrogate shell     [--addr=localhost:9090]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"surrogate/pkg/config"
	"surrogate/pkg/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// cfg is loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "surrogate",
	Short: "Error-bounded nearest-neighbour surrogate for expensive models",
	Long: "surrogate calibrates how far a nearest-neighbour approximation of a slow model\n" +
		"can be trusted and serves evaluations that fall back to the model only when\n" +
		"the estimated error exceeds the requested precision.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "Path to YAML config (default: configs/surrogate.yaml, surrogate.yaml)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json (overrides config)")

	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.Version = version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(rootFlags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if rootFlags.logLevel != "" {
		c.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		c.Log.Format = rootFlags.logFormat
	}
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, c.Log.Format, cmd.ErrOrStderr())
	cfg = c
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
