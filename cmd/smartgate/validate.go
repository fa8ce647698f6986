package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"myinfra-hq/smartgate/pkg/config"
	"myinfra-hq/smartgate/pkg/gateway"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the gateway.

Validation covers the YAML structure, every project's prefix, target URL,
auth settings, public path patterns, rate limit and circuit breaker
ranges, and that all prefixes are pairwise distinct.

Examples:
  # Validate the default config
  smartgate validate

  # Validate a specific file
  smartgate validate --config /etc/smartgate/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return err
		}

		// Compiling the registry catches what static validation cannot:
		// undecodable keys and unparseable public key material.
		if _, err := gateway.NewRegistry(cfg.Projects); err != nil {
			return fmt.Errorf("project compilation failed: %w", err)
		}

		fmt.Printf("✓ Configuration valid (%d projects)\n", len(cfg.Projects))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
