package main

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/R0zhkov/wrf/internal/config"
)

const statusTimeout = 5 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check if the wrf server is running",
	Long: `Check a running wrf server by querying its /health endpoint and print
the circuit state of the upstream.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return checkStatus(cmd.OutOrStdout(), cfgFile)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// checkStatus resolves the listen address from configPath and queries
// /health on it.
func checkStatus(out io.Writer, configPath string) error {
	cfg, _, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	addr := dialAddress(cfg.Server.GetListen())
	resp, err := resty.New().
		SetTimeout(statusTimeout).
		R().
		Get("http://" + addr + "/health")
	if err != nil {
		fmt.Fprintf(out, "✗ wrf is not running (%s)\n", addr)
		return fmt.Errorf("server not reachable: %w", err)
	}
	if !resp.IsSuccess() {
		fmt.Fprintf(out, "✗ wrf returned unexpected status: %d\n", resp.StatusCode())
		return fmt.Errorf("health check failed with status %d", resp.StatusCode())
	}

	body := resp.Body()
	fmt.Fprintf(out, "✓ wrf is running (%s), status %s\n", addr, gjson.GetBytes(body, "status").String())
	gjson.GetBytes(body, "upstreams").ForEach(func(name, state gjson.Result) bool {
		fmt.Fprintf(out, "  %s: %s\n", name.String(), state.String())
		return true
	})
	return nil
}

// dialAddress turns a listen address into one a client can connect to.
func dialAddress(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
