package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show engine health and circuit breaker states",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(apiURL("/health"))
		if err != nil {
			cmd.Printf("Failed to send request: %v\n", err)
			return
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			cmd.Printf("Request failed with status %d: %s\n", resp.StatusCode, strings.TrimSpace(string(raw)))
			return
		}

		var health struct {
			Status   string `json:"status"`
			Breakers []struct {
				Key             string    `json:"key"`
				State           string    `json:"state"`
				FailureCount    int       `json:"failure_count"`
				LastStateChange time.Time `json:"last_state_change"`
			} `json:"breakers"`
			CacheEntries  int    `json:"cache_entries"`
			TrackedScans  int    `json:"tracked_scans"`
			ResultArchive string `json:"result_archive"`
		}
		if err := json.Unmarshal(raw, &health); err != nil {
			cmd.Printf("Failed to parse response: %v\n", err)
			return
		}

		cmd.Printf("Status:         %s\n", health.Status)
		cmd.Printf("Cached fetches: %d\n", health.CacheEntries)
		cmd.Printf("Tracked scans:  %d\n", health.TrackedScans)
		cmd.Printf("Result archive: %s\n", health.ResultArchive)
		if len(health.Breakers) > 0 {
			cmd.Println("\nCircuit breakers:")
			for _, b := range health.Breakers {
				cmd.Printf("  %-20s %-10s failures=%d\n", b.Key, b.State, b.FailureCount)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
