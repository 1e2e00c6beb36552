package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guangtouwangba/open-deep-research/internal/config"
)

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "deepresearch",
	Short: "Multi-phase research pipeline",
	Long: `deepresearch breaks a research goal into a dependency graph of tasks,
runs each task through anchoring, generation, critique, verification and
synthesis, reflects on coverage, and writes a cited report.

Every step is persisted. Interrupt a job with Ctrl+C and continue it later
with 'deepresearch resume <id>'.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "State directory holding jobs.db (overrides storage.dir)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the global and project config files and applies --home.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if homeDir != "" {
		cfg.Storage.Dir = homeDir
	}
	return cfg, nil
}
