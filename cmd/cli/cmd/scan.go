package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Start and inspect scans",
}

var scanStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a scan for a user",
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		if userID == "" {
			cmd.Println("--user is required")
			return
		}
		platforms, _ := cmd.Flags().GetString("platforms")
		competitors, _ := cmd.Flags().GetString("competitors")
		lookback, _ := cmd.Flags().GetInt("lookback")
		ownPosts, _ := cmd.Flags().GetBool("own")
		topN, _ := cmd.Flags().GetInt("top")

		body := map[string]interface{}{
			"user_id":           userID,
			"lookback_days":     lookback,
			"include_own_posts": ownPosts,
			"top_n":             topN,
		}
		if platforms != "" {
			body["platforms"] = splitCSV(platforms)
		}
		if competitors != "" {
			body["competitor_ids"] = splitCSV(competitors)
		}

		payload, _ := json.Marshal(body)
		resp, err := http.Post(apiURL("/api/v1/scans"), "application/json", bytes.NewReader(payload))
		if err != nil {
			cmd.Printf("Failed to send request: %v\n", err)
			return
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusAccepted {
			cmd.Printf("Request failed with status %d: %s\n", resp.StatusCode, strings.TrimSpace(string(raw)))
			return
		}

		var created struct {
			ScanID string `json:"scan_id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &created); err != nil {
			cmd.Printf("Failed to parse response: %v\n", err)
			return
		}
		cmd.Printf("Scan started: %s (%s)\n", created.ScanID, created.Status)
		cmd.Printf("Watch it with: pulsectl scan watch %s\n", created.ScanID)
	},
}

var scanStatusCmd = &cobra.Command{
	Use:   "status [scan_id]",
	Short: "Get the current state of a scan",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result, err := fetchScan(args[0])
		if err != nil {
			cmd.Println(err)
			return
		}
		printScan(cmd, result)
	},
}

var scanWatchCmd = &cobra.Command{
	Use:   "watch [scan_id]",
	Short: "Poll a scan until it reaches a terminal status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		interval, _ := cmd.Flags().GetDuration("interval")
		for {
			result, err := fetchScan(args[0])
			if err != nil {
				cmd.Println(err)
				return
			}
			if result.Status.Terminal() {
				printScan(cmd, result)
				return
			}
			cmd.Printf("%s  status=%s\n", time.Now().Format("15:04:05"), result.Status)
			time.Sleep(interval)
		}
	},
}

func fetchScan(scanID string) (*models.ScanResult, error) {
	resp, err := http.Get(apiURL("/api/v1/scans/" + scanID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("scan %s not found", scanID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result models.ScanResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

func printScan(cmd *cobra.Command, r *models.ScanResult) {
	cmd.Printf("Scan %s\n", r.ScanID)
	cmd.Println("──────────────────────────────")
	cmd.Printf("User:       %s\n", r.UserID)
	cmd.Printf("Status:     %s\n", r.Status)
	cmd.Printf("Platforms:  %s\n", strings.Join(r.Options.Platforms, ", "))
	cmd.Printf("Created:    %s\n", r.CreatedAt.Format(time.RFC3339))
	if r.CompletedAt != nil {
		cmd.Printf("Completed:  %s\n", r.CompletedAt.Format(time.RFC3339))
	}
	if r.Error != "" {
		cmd.Printf("Error:      %s\n", r.Error)
	}
	if r.Status != models.ScanStatusCompleted {
		return
	}

	cmd.Printf("Items:      %d\n", r.TotalItems)
	cmd.Printf("Avg. engagement: %.1f\n", r.AverageEngagement)

	if len(r.PeakTimes) > 0 {
		cmd.Println("\nPeak posting windows (UTC):")
		for _, p := range r.PeakTimes {
			cmd.Printf("  %02d:00  items=%d  avg=%.1f\n", p.Hour, p.ItemCount, p.AvgEngagement)
		}
	}
	if len(r.TopItems) > 0 {
		cmd.Println("\nTop items:")
		for i, item := range r.TopItems {
			cmd.Printf("  %2d. [%s] %s (score=%.1f)\n", i+1, item.Platform, item.URL, item.Metrics.EngagementScore())
		}
	}
}

func apiURL(path string) string {
	return strings.TrimRight(viper.GetString("url"), "/") + path
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func init() {
	scanStartCmd.Flags().String("user", "", "User id to scan")
	scanStartCmd.Flags().String("platforms", "", "Comma-separated platforms (default: server config)")
	scanStartCmd.Flags().String("competitors", "", "Comma-separated competitor ids")
	scanStartCmd.Flags().Int("lookback", 30, "Days of history to fetch")
	scanStartCmd.Flags().Bool("own", true, "Include the user's own posts")
	scanStartCmd.Flags().Int("top", 10, "Number of top items to report")

	scanWatchCmd.Flags().Duration("interval", 2*time.Second, "Poll interval")

	scanCmd.AddCommand(scanStartCmd)
	scanCmd.AddCommand(scanStatusCmd)
	scanCmd.AddCommand(scanWatchCmd)
	rootCmd.AddCommand(scanCmd)
}
