// Copyright © 2025 Attestant Limited.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/watcheth/stakewatch/internal/cache"
	"github.com/watcheth/stakewatch/internal/config"
	"github.com/watcheth/stakewatch/internal/logger"
	"github.com/watcheth/stakewatch/internal/monitor"
	"github.com/watcheth/stakewatch/internal/node"
	"github.com/watcheth/stakewatch/internal/report"
	"github.com/watcheth/stakewatch/internal/server"
	"github.com/watcheth/stakewatch/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve validator metrics for Prometheus",
	Long: `Serve validator status and uptime metrics on /metrics. Each scrape refreshes
the cache from the configured nodes, at most once per poll interval.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newMonitor builds the poll gate over the configured nodes and validators.
func newMonitor(cfg *config.Config) *monitor.Monitor {
	ids, err := cfg.Identities()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	timeout := max(cfg.GetConnectTimeout(), cfg.GetRequestTimeout())
	tiers := node.NewTiers(cfg.Tiers(), node.NewHTTPDialer(timeout))

	return monitor.NewMonitor(tiers, cache.NewSet(ids), monitor.Options{
		PollInterval:   cfg.GetPollInterval(),
		ConnectTimeout: cfg.GetConnectTimeout(),
		RequestTimeout: cfg.GetRequestTimeout(),
	})
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	log := logger.WithComponent("serve")

	mon := newMonitor(cfg)

	reporter, err := report.NewReporter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating metrics: %v\n", err)
		os.Exit(1)
	}
	reporter.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	log.Info().
		Str("version", version.GetVersion()).
		Strs("validators", cfg.Validators).
		Strs("nodes", cfg.Nodes).
		Strs("fallback_nodes", cfg.FallbackNodes).
		Dur("poll_interval", mon.GetPollInterval()).
		Msg("starting")

	go mon.Start(ctx)

	if err := server.New(mon, reporter).Run(ctx, cfg.GetBind()); err != nil {
		logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
}
