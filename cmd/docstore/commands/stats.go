package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kikk79/docstore/internal/cli/output"
)

var (
	statsAPIPort int
	statsOutput  string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics of a running server",
	Long: `Fetch cache statistics from a running docstore server.

Examples:
  # Query the default port
  docstore stats

  # Custom API port, JSON output
  docstore stats --api-port 9080 --output json`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsAPIPort, "api-port", 8080, "API server port")
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// cacheStatsView mirrors the /stats/cache payload.
type cacheStatsView struct {
	Hits             uint64  `json:"hits" yaml:"hits"`
	Misses           uint64  `json:"misses" yaml:"misses"`
	Evictions        uint64  `json:"evictions" yaml:"evictions"`
	TotalAccesses    uint64  `json:"total_accesses" yaml:"total_accesses"`
	TotalLoadedBytes int64   `json:"total_loaded_bytes" yaml:"total_loaded_bytes"`
	TotalSavedBytes  int64   `json:"total_saved_bytes" yaml:"total_saved_bytes"`
	CurrentSizeBytes int64   `json:"current_size_bytes" yaml:"current_size_bytes"`
	CurrentCount     int     `json:"current_count" yaml:"current_count"`
	HitRate          float64 `json:"hit_rate" yaml:"hit_rate"`
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statsOutput)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	res, err := client.Get(fmt.Sprintf("http://localhost:%d/stats/cache", statsAPIPort))
	if err != nil {
		return fmt.Errorf("is the server running? %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", res.Status)
	}

	var envelope struct {
		Data cacheStatsView `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	stats := envelope.Data

	if format != output.FormatTable {
		return output.NewPrinter(os.Stdout, format, false).Print(stats)
	}

	return output.SimpleTable(os.Stdout, [][2]string{
		{"Hits", fmt.Sprintf("%d", stats.Hits)},
		{"Misses", fmt.Sprintf("%d", stats.Misses)},
		{"Hit rate", fmt.Sprintf("%.1f%%", stats.HitRate*100)},
		{"Evictions", fmt.Sprintf("%d", stats.Evictions)},
		{"Total accesses", fmt.Sprintf("%d", stats.TotalAccesses)},
		{"Bytes served from cache", fmt.Sprintf("%d", stats.TotalLoadedBytes)},
		{"Bytes reclaimed by eviction", fmt.Sprintf("%d", stats.TotalSavedBytes)},
		{"Resident bytes", fmt.Sprintf("%d", stats.CurrentSizeBytes)},
		{"Resident documents", fmt.Sprintf("%d", stats.CurrentCount)},
	})
}
