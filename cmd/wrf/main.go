// Package main is the entry point for wrf.
package main

import (
	"context"
	"os"
	_ "time/tzdata" // the default timezone must resolve on minimal images

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/R0zhkov/wrf/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wrf",
	Short: "Live waiting-list counters for the restaurant dashboard",
	Long: `wrf signs in to the reservation dashboard, reads how many guests are
waiting for a given day, and serves the counters as JSON and as a small page.
Results are cached per date and refreshed in the background.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ./wrf.yaml or ~/.config/wrf/wrf.yaml)")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd,
		fang.WithVersion(version.Version),
		fang.WithCommit(version.Commit),
	); err != nil {
		os.Exit(1)
	}
}
