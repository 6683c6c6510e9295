package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/watcheth/stakewatch/internal/common"
	"github.com/watcheth/stakewatch/internal/node"
	"github.com/watcheth/stakewatch/internal/stake"
	"github.com/watcheth/stakewatch/internal/version"
)

var debugCmd = &cobra.Command{
	Use:   "debug [endpoint]",
	Short: "Debug a node endpoint",
	Long:  `Query the health and stake endpoints of a node for each configured validator and show the raw answers.`,
	Args:  cobra.ExactArgs(1),
	Run:   runDebug,
}

func init() {
	rootCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) {
	endpoint := strings.TrimRight(args[0], "/")
	fmt.Printf("Testing node at: %s\n\n", endpoint)

	paths := []string{"/health"}
	for _, v := range viper.GetStringSlice("validators") {
		id, err := stake.ParseIdentityKey(v)
		if err != nil {
			fmt.Printf("Skipping validator: %v\n", err)
			continue
		}
		paths = append(paths, node.ValidatorPath(id, "status"), node.ValidatorPath(id, "uptime"))
	}

	client := common.NewHTTPClient(5 * time.Second)

	for _, path := range paths {
		fmt.Printf("Testing %s...", path)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+path, nil)
		if err != nil {
			fmt.Printf(" ❌ Error creating request: %v\n", err)
			cancel()
			continue
		}
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err := client.Do(req)
		if err != nil {
			cancel()
			fmt.Printf(" ❌ Error: %v\n", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()

		if resp.StatusCode != http.StatusOK {
			fmt.Printf(" ❌ Status: %d\n", resp.StatusCode)
			continue
		}
		fmt.Printf(" ✅ OK (200)\n")
		if err != nil {
			fmt.Printf("   Error reading body: %v\n", err)
			continue
		}

		var rawJSON any
		if err := json.Unmarshal(body, &rawJSON); err != nil {
			fmt.Printf("   Failed to parse JSON: %v\n", err)
			fmt.Printf("   Response preview:\n   %s\n", truncateString(string(body), 500))
			continue
		}
		formatted, _ := json.MarshalIndent(rawJSON, "   ", "  ")
		fmt.Printf("   %s\n", truncateString(string(formatted), 1000))
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
