package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/R0zhkov/wrf/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the configuration, including environment overrides, without
starting the server.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return validateConfig(cmd.OutOrStdout(), cfgFile)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func validateConfig(out io.Writer, configPath string) error {
	cfg, path, err := config.Resolve(configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(out, "✗ Config validation failed: %s\n", err)
		return err
	}

	if path == "" {
		path = "built-in defaults"
	}
	fmt.Fprintf(out, "✓ %s is valid\n", path)
	if !cfg.Upstream.HasCredentials() {
		fmt.Fprintln(out, "! upstream credentials are not set; /api/stats will answer 500 until they are")
	}
	return nil
}
