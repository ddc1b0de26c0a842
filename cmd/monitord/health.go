package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flitsinc/taskplex-monitor/internal/monitor"
)

func newHealthCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running monitor's /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			health, err := fetchHealth(client, url)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status=%s events=%d runs=%d\n", health.Status, health.Events, health.Runs)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:4444", "monitor base URL")
	return cmd
}

func fetchHealth(client *http.Client, baseURL string) (monitor.Health, error) {
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/health")
	if err != nil {
		return monitor.Health{}, fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return monitor.Health{}, fmt.Errorf("health request: status %d", resp.StatusCode)
	}
	var health monitor.Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return monitor.Health{}, fmt.Errorf("decode health: %w", err)
	}
	return health, nil
}
