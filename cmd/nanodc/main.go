// Package main is the entry point for the nanodc CLI.
//
// The NanoDC monitor can be run either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	nanodc serve -c config.yaml    # Start the monitor
//	nanodc validate -c config.yaml # Validate configuration
//	nanodc version                 # Show version info
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
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "nanodc",
	Short: "A device monitoring front end for NanoDC sites",
	Long: `nanodc monitors the devices of a NanoDC data-center site.

It polls the site's telemetry API on a fixed interval, resolves the
reported nodes onto a fixed display-slot layout via per-site keyword
rules, and serves the resulting display state over HTTP with
Server-Sent Events for live updates.

Quick start:
  1. Create a config file (nanodc.yaml)
  2. Run: nanodc serve -c nanodc.yaml
  3. Point your display client at http://localhost:8080/api/events

Example config:
  site: bc02
  refresh_interval: 20s
  api:
    base_url: https://api.nanodc.example`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
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
	Long:  `Print the version, commit hash, and build date of this nanodc binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nanodc %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
