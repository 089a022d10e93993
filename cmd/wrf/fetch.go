package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/R0zhkov/wrf/internal/di"
	"github.com/R0zhkov/wrf/internal/server"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the counters once and print them",
	Long: `Sign in to the upstream, fetch the counters for one date with the
configured retry policy, and print the same JSON /api/stats returns.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		date, err := cmd.Flags().GetString("date")
		if err != nil {
			return fmt.Errorf("failed to get date flag: %w", err)
		}
		return fetchOnce(cmd.Context(), cmd.OutOrStdout(), cfgFile, date)
	},
}

func init() {
	fetchCmd.Flags().String("date", "", "today, tomorrow, or YYYY-MM-DD (default: today)")
	rootCmd.AddCommand(fetchCmd)
}

func fetchOnce(ctx context.Context, out io.Writer, configPath, date string) error {
	container, err := di.NewContainer(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = container.Shutdown() }()

	statsSvc, err := di.Invoke[*di.StatsService](container)
	if err != nil {
		return err
	}

	entry, err := statsSvc.Service.Lookup(ctx, date)
	if err != nil {
		return err
	}
	body, err := server.RenderEntry(entry, statsSvc.Service.Location())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(body))
	return err
}
