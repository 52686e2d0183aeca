// Package cli holds the bienestar command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bienestar/config"
	"bienestar/logger"
)

var (
	configPath string
	appLog     = logger.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "bienestar",
	Short: "Private Mind/Body/Spirit habit tracker",
	Long: `bienestar keeps a personal wellness assessment, the weekly habit plan
built from it and the daily progress log, encrypted under a PIN.

Run "bienestar serve" to start the HTTP API.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		appLog.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a JSON config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(catalogCmd)
}

// setup loads the configuration and builds the process logger.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadConfig(configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	l, err := logger.New(config.AppConfig.LogMode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	appLog = l
	if config.AppConfig.GeneratedKey {
		appLog.Warn("session_key is not configured; using a random key, sessions end on restart")
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
