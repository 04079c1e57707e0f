package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Seabmoby/transit511/config"
)

// validateCmd validates a config file without starting the coordinator.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a transit511 configuration file without starting the coordinator.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  transit511 validate -c config.yaml
  transit511 validate --config /etc/transit511/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Watches for the same physical resource share one poller, so count
	// the distinct keys to show the real request footprint.
	regs := config.BuildRegistrations(cfg)
	distinct := make(map[string]struct{}, len(regs))
	for _, r := range regs {
		distinct[r.Key.String()] = struct{}{}
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Watches:       %d stops + %d vehicles = %d total\n",
		len(cfg.Stops), len(cfg.Vehicles), len(regs))
	fmt.Printf("  Pollers:       %d shared (distinct resources)\n", len(distinct))

	return nil
}
