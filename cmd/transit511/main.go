// Package main is the entry point for the transit511 CLI.
//
// The coordinator can be embedded as a library (SDK) or run as a
// standalone binary with YAML configuration. This CLI provides the
// standalone binary approach.
//
// Usage:
//
//	transit511 watch -c config.yaml    # Start watching configured stops/vehicles
//	transit511 validate -c config.yaml # Validate configuration
//	transit511 version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "transit511",
	Short: "Shared polling coordinator for 511.org real-time transit data",
	Long: `transit511 watches stops and vehicles on the 511.org real-time API.

The 511 API allows 60 requests per hour per key, so the coordinator
shares one poller per physical stop or vehicle across all configured
watches, no matter how many lines or directions they filter on.

Quick start:
  1. Create a config file (transit511.yaml)
  2. Export your API key: export TRANSIT_511_API_KEY=...
  3. Run: transit511 watch -c transit511.yaml

Example config:
  api_key: ${TRANSIT_511_API_KEY}
  poll_interval: 60s
  stops:
    - operator: SF
      stop_code: "18031"
      line: N`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this transit511 binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("transit511 %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
