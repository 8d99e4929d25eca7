package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/cmd/smartdoc/ui"
)

var statusServerURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show status of a running SmartDoc server",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusServerURL, "server", "s", "http://localhost:8000", "SmartDoc server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ui.Init(noColor, verbose)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(statusServerURL + "/api/v1/system/status")
	if err != nil {
		return fmt.Errorf("reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var status struct {
		Service       string  `json:"service"`
		Status        string  `json:"status"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Tasks         struct {
			Active    int64 `json:"active_tasks"`
			Completed int64 `json:"completed_tasks"`
			Failed    int64 `json:"failed_tasks"`
		} `json:"tasks"`
		Scheduler struct {
			QueueDepth        int   `json:"queue_depth"`
			InFlightBatches   int   `json:"in_flight_batches"`
			DispatchedBatches int64 `json:"dispatched_batches"`
			Rejected          int64 `json:"rejected"`
			TimedOut          int64 `json:"timed_out"`
		} `json:"scheduler"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	ui.Section("Server Status")
	ui.Table([]string{"Field", "Value"}, [][]string{
		{"Service", status.Service},
		{"Status", status.Status},
		{"Uptime", (time.Duration(status.UptimeSeconds) * time.Second).String()},
		{"Active tasks", strconv.FormatInt(status.Tasks.Active, 10)},
		{"Completed tasks", strconv.FormatInt(status.Tasks.Completed, 10)},
		{"Failed tasks", strconv.FormatInt(status.Tasks.Failed, 10)},
		{"Queue depth", strconv.Itoa(status.Scheduler.QueueDepth)},
		{"In-flight batches", strconv.Itoa(status.Scheduler.InFlightBatches)},
		{"Dispatched batches", strconv.FormatInt(status.Scheduler.DispatchedBatches, 10)},
	})
	return nil
}
