package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/watcheth/stakewatch/internal/stake"
)

const (
	DefaultBind           = "0.0.0.0:9814"
	DefaultPollInterval   = time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

var (
	ErrNoNodes         = errors.New("no nodes configured")
	ErrNoValidators    = errors.New("no validators configured")
	ErrInvalidNode     = errors.New("invalid node URI")
	ErrInvalidDuration = errors.New("invalid duration")
)

type Config struct {
	Validators     []string `mapstructure:"validators"`
	Nodes          []string `mapstructure:"nodes"`
	FallbackNodes  []string `mapstructure:"fallback_nodes"`
	Bind           string   `mapstructure:"bind"`
	PollInterval   string   `mapstructure:"poll_interval"`
	ConnectTimeout string   `mapstructure:"connect_timeout"`
	RequestTimeout string   `mapstructure:"request_timeout"`
	LogLevel       string   `mapstructure:"log_level"`
	LogFormat      string   `mapstructure:"log_format"`
}

// Load decodes the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) GetBind() string {
	if c.Bind == "" {
		return DefaultBind
	}
	return c.Bind
}

func (c *Config) GetPollInterval() time.Duration {
	return parseDuration(c.PollInterval, DefaultPollInterval)
}

func (c *Config) GetConnectTimeout() time.Duration {
	return parseDuration(c.ConnectTimeout, DefaultConnectTimeout)
}

// GetRequestTimeout defaults to the connect timeout.
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, c.GetConnectTimeout())
}

func (c *Config) GetLogLevel() string {
	if c.LogLevel == "" {
		return DefaultLogLevel
	}
	return strings.ToLower(c.LogLevel)
}

func (c *Config) GetLogFormat() string {
	if c.LogFormat == "" {
		return DefaultLogFormat
	}
	return strings.ToLower(c.LogFormat)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil || duration <= 0 {
		return fallback
	}
	return duration
}

// Identities parses the configured validators, preserving their order.
func (c *Config) Identities() ([]stake.IdentityKey, error) {
	ids := make([]stake.IdentityKey, 0, len(c.Validators))
	seen := make(map[stake.IdentityKey]struct{}, len(c.Validators))
	for _, v := range c.Validators {
		id, err := stake.ParseIdentityKey(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("duplicate validator %s", id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Tiers groups the nodes for querying: all primary nodes together first, then
// each fallback node on its own in the configured order.
func (c *Config) Tiers() [][]string {
	tiers := make([][]string, 0, 1+len(c.FallbackNodes))
	tiers = append(tiers, append([]string(nil), c.Nodes...))
	for _, f := range c.FallbackNodes {
		tiers = append(tiers, []string{f})
	}
	return tiers
}

// Validate checks the configuration before anything is contacted.
func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return ErrNoNodes
	}
	if len(c.Validators) == 0 {
		return ErrNoValidators
	}
	if _, err := c.Identities(); err != nil {
		return err
	}

	for _, uri := range append(append([]string(nil), c.Nodes...), c.FallbackNodes...) {
		if err := validateNode(uri); err != nil {
			return err
		}
	}

	durations := map[string]string{
		"poll_interval":   c.PollInterval,
		"connect_timeout": c.ConnectTimeout,
		"request_timeout": c.RequestTimeout,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %s %q", ErrInvalidDuration, key, value)
		}
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidDuration, key)
		}
	}

	if _, err := zerolog.ParseLevel(c.GetLogLevel()); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch c.GetLogFormat() {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	return nil
}

func validateNode(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidNode, uri, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidNode, uri)
	}
	if u.Host == "" {
		return fmt.Errorf("%w %q: missing host", ErrInvalidNode, uri)
	}
	return nil
}
