package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parlatrack/parlatrack/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "parlatrack",
	Short:         "Track legislative proceedings across parliaments",
	Long:          "parlatrack ingests scraped legislative data, deduplicates and merges it into a relational store, and serves it over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if err := config.Initialize(cfgFile); err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); PT_* environment variables take precedence")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(versionCmd)
}
