package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "smartgate",
	Short: "Smartgate - reverse-proxy API gateway",
	Long: `Smartgate is a reverse-proxy API gateway.

For every inbound request it performs:
  - Project resolution by longest URL path prefix
  - CSRF validation on write methods (per project)
  - Authentication via signed bearer token or server-held session
  - Distributed token-bucket rate limiting
  - Identity propagation to the upstream (X-User-Id/Role/Plan)
  - Fault-isolated forwarding through a per-project circuit breaker

Failures are always answered with a standardized JSON error envelope.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
