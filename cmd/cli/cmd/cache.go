package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached source fetches",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate [platform] [user_id]",
	Short: "Drop cached fetches for a platform and user",
	Long:  `Removes every cached fetch for the given platform and user so the next scan pulls fresh data. Use after the user posts new content.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		platform, userID := args[0], args[1]

		endpoint := apiURL(fmt.Sprintf("/api/v1/cache/%s/users/%s", platform, userID))
		req, err := http.NewRequest(http.MethodDelete, endpoint, nil)
		if err != nil {
			cmd.Printf("Failed to create request: %v\n", err)
			return
		}

		resp, err := http.DefaultClient.Do(req)
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

		var result struct {
			Removed int `json:"removed"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			cmd.Printf("Failed to parse response: %v\n", err)
			return
		}
		cmd.Printf("Removed %d cached entr%s for %s/%s\n", result.Removed, plural(result.Removed, "y", "ies"), platform, userID)
	},
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
