package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default config file",
	Long:  `Generate a default wrf configuration file at ~/.config/wrf/wrf.yaml`,
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().StringP("output", "o", "", "output path (default: ~/.config/wrf/wrf.yaml)")
	configInitCmd.Flags().Bool("force", false, "overwrite existing config file")
}

// runConfigInit writes defaultConfigTemplate, creating parent directories.
// An existing file is kept unless --force is given.
func runConfigInit(cmd *cobra.Command, _ []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("failed to get force flag: %w", err)
	}

	if output == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		output = filepath.Join(home, ".config", "wrf", "wrf.yaml")
	}

	if _, err := os.Stat(output); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", output)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(output, []byte(defaultConfigTemplate), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Config file created at %s\n", output)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Set WRF_LOGIN and WRF_PASSWORD (or MY_SITE_LOGIN and MY_SITE_PASSWORD)")
	fmt.Fprintln(out, "  2. Validate with: wrf config validate")
	fmt.Fprintln(out, "  3. Start the server: wrf serve")
	return nil
}

const defaultConfigTemplate = `# wrf configuration
server:
  listen: "0.0.0.0:3000"
  cors_origins: ["*"]
  # max_concurrent: 64

upstream:
  kind: hostes            # hostes, clientomer_api or clientomer_cabinet
  base_url: https://wrf.hostes.me
  login: ${WRF_LOGIN}
  password: ${WRF_PASSWORD}
  tenant: resto-wrf
  locale: ru_RU
  restaurant_id: 3
  places: [7, 133, 348, 349]
  statuses: [WAIT_LIST, NEW, CONFIRMED]
  # point_id: "125021"    # clientomer variants
  # render: browser       # clientomer_cabinet: browser (headless Chromium) or http
  # browser_path: /usr/bin/chromium
  # ready_timeout_ms: 60000
  # ready_poll_ms: 2000
  attempt_timeout_ms: 30000

stats:
  ttl_ms: 60000
  swr_ms: 30000
  max_attempts: 3
  retry_delay_ms: 2000
  timezone: Europe/Moscow
  cold_wait: wait         # wait or reject
  refresh_mode: blocking  # blocking or background
  warm_dates: [today]
  warm_interval_ms: 0     # 0 disables the warmer
  past_days: 7            # dates outside the window resolve to today
  future_days: 60

health:
  circuit_breaker:
    failure_threshold: 5
    open_duration_ms: 30000
  probe:
    interval_ms: 15000

cache:
  mode: memory            # memory or disabled

metrics:
  enabled: true
  namespace: wrf

telemetry:
  enabled: false
  endpoint: http://localhost:4318

logging:
  level: info
  format: console
  output: stdout
`
