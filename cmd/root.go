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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/watcheth/stakewatch/internal/config"
	"github.com/watcheth/stakewatch/internal/logger"
)

var (
	cfgFile   string
	debugMode bool
)

var rootCmd = &cobra.Command{
	Use:   "stakewatch",
	Short: "Caching Prometheus exporter for Penumbra validator uptime",
	Long: `stakewatch queries one or more full nodes for the status and uptime of a set
of validators, caches the most recent answer for each, and serves the cache as
Prometheus metrics. Fallback nodes are consulted only for validators the primary
nodes could not serve.`,
	Run: func(cmd *cobra.Command, args []string) {
		serveCmd.Run(cmd, args)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./stakewatch.yml)")
	flags.BoolVar(&debugMode, "debug", false, "enable debug logging")

	flags.StringSliceP("validator", "v", nil, "validator identity key to monitor (repeatable)")
	flags.StringSliceP("node", "n", nil, "primary node URI (repeatable)")
	flags.StringSliceP("fallback", "f", nil, "fallback node URI, tried in order (repeatable)")
	flags.StringP("bind", "b", "", fmt.Sprintf("address to serve metrics on (default %s)", config.DefaultBind))
	flags.String("poll-interval", "", fmt.Sprintf("minimum time between node queries (default %s)", config.DefaultPollInterval))
	flags.String("connect-timeout", "", fmt.Sprintf("timeout for connecting to a node (default %s)", config.DefaultConnectTimeout))
	flags.String("request-timeout", "", "timeout for a validator query (default connect-timeout)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")

	bindings := map[string]string{
		"validators":      "validator",
		"nodes":           "node",
		"fallback_nodes":  "fallback",
		"bind":            "bind",
		"poll_interval":   "poll-interval",
		"connect_timeout": "connect-timeout",
		"request_timeout": "request-timeout",
		"log_level":       "log-level",
		"log_format":      "log-format",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// IsDebugMode returns whether debug mode is enabled
func IsDebugMode() bool {
	return debugMode
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("stakewatch")
	}

	viper.SetEnvPrefix("stakewatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig decodes and validates the configuration and sets up logging.
// Any problem is fatal.
func loadConfig() *config.Config {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Setup(logger.Config{Level: cfg.GetLogLevel(), Format: cfg.GetLogFormat()}); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging configuration: %v\n", err)
		os.Exit(1)
	}
	if IsDebugMode() {
		logger.SetDebugMode(true)
	}

	if file := viper.ConfigFileUsed(); file != "" {
		logger.Info("Using config file: %s", file)
	}
	return cfg
}
