package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/watcheth/stakewatch/internal/logger"
	"github.com/watcheth/stakewatch/internal/report"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Query validator status once (non-interactive)",
	Long:  `Run a single refresh round against the configured nodes and print the status of each validator. Exits non-zero if any validator could not be updated or has no data.`,
	Run:   runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	mon := newMonitor(cfg)

	snap := mon.Scrape(context.Background())
	rep := report.Project(snap)

	reported := make(map[string]report.ValidatorMetrics, len(rep.Validators))
	for _, v := range rep.Validators {
		reported[v.Identity.String()] = v
	}

	missing := 0
	fmt.Printf("=== Validators (%d) ===\n\n", len(snap.Entries))
	for _, entry := range snap.Entries {
		id := entry.Identity.String()
		fmt.Printf("%s\n", id)

		v, ok := reported[id]
		if !ok {
			fmt.Printf("  ❌ No data\n\n")
			missing++
			continue
		}
		if entry.Fresh {
			fmt.Printf("  ✅ Updated at height %d\n", entry.Uptime.AsOfHeight)
		} else {
			fmt.Printf("  ❌ Stale, last seen at height %d\n", entry.Uptime.AsOfHeight)
		}
		fmt.Printf("  State: %s\n", v.State)
		fmt.Printf("  Bonding State: %s\n", entry.Status.BondingState)
		fmt.Printf("  Voting Power: %d\n", v.VotingPower)
		fmt.Printf("  Uptime: %.2f%% over %d blocks\n", v.UptimePercent, entry.Uptime.WindowLen)
		fmt.Printf("  Missed In A Row: %d\n\n", v.ConsecutiveMissed)
	}

	if !snap.Success {
		logger.Warn("Some validators could not be updated from any node")
		os.Exit(1)
	}
	if missing > 0 {
		logger.Warn("No node returned data for %d validator(s)", missing)
		os.Exit(1)
	}
}
