package main

import (
	"fmt"
	"sort"

	"github.com/barnum167/nanodc-monitor"
	"github.com/barnum167/nanodc-monitor/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the monitor.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a nanodc configuration file without starting the monitor.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  nanodc validate -c config.yaml
  nanodc validate --config /etc/nanodc/config.yaml`,
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

	// the SDK re-validates layouts and rule tables with family-specific
	// checks (e.g. NAS rules take a single keyword); surface those here too
	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := nanodc.New(opts...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	slots := 0
	for _, lc := range cfg.Layout {
		slots += lc.Slots
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Site:             %s\n", cfg.Site)
	fmt.Printf("  Port:             %d\n", cfg.Port)
	fmt.Printf("  Refresh interval: %s\n", cfg.RefreshInterval.Duration())
	if slots > 0 {
		fmt.Printf("  Layout slots:     %d\n", slots)
	} else {
		fmt.Printf("  Layout slots:     default\n")
	}
	if len(cfg.Sites) > 0 {
		names := make([]string, 0, len(cfg.Sites))
		for site := range cfg.Sites {
			names = append(names, site)
		}
		sort.Strings(names)
		fmt.Printf("  Configured sites: %v\n", names)
	}

	return nil
}
