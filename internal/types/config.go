package types

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	DefaultMaxConcurrent  = 5
	DefaultMinSpacing     = 2 * time.Second
	DefaultMaxQueue       = 32
	DefaultPollInterval   = 30 * time.Second
	DefaultVestingDays    = 30
	DefaultSessionTTL     = 12 * time.Hour
	DefaultDenomination   = 12
	MinPollIntervalSecond = 5
)

// TokenConfig describes one token the dashboard knows about. Denomination is
// a fallback only; the live value comes from the compute process.
type TokenConfig struct {
	Address      string `yaml:"address" json:"address"`
	Symbol       string `yaml:"symbol" json:"symbol"`
	Denomination int    `yaml:"denomination" json:"denomination"`
}

// LimiterConfig bounds outbound dispatches to the compute process.
// MaxConcurrent caps in-flight calls, MinSpacingMS is the minimum delay
// between dispatches, MaxQueue caps the number of queued (not yet started)
// callers; the oldest queued caller is evicted on overflow.
type LimiterConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`
	MinSpacingMS  int `yaml:"min_spacing_ms" json:"min_spacing_ms"`
	MaxQueue      int `yaml:"max_queue" json:"max_queue"`
}

// Config drives the stakedeck service. Process is the opaque endpoint
// identifier of the external compute process; TopicARN is the SNS topic that
// receives terminal transaction notifications (empty disables publishing).
type Config struct {
	Port    int    `yaml:"port" json:"port"`
	Process string `yaml:"process" json:"process"`
	// NodeURL is the base URL of the node that fronts the compute process;
	// NodeAPIKey is optional bearer auth for it.
	NodeURL             string        `yaml:"node_url" json:"node_url"`
	NodeAPIKey          string        `yaml:"node_api_key" json:"node_api_key"`
	TopicARN            string        `yaml:"topic_arn" json:"topic_arn"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`
	VestingDays         int           `yaml:"vesting_days" json:"vesting_days"`
	Limiter             LimiterConfig `yaml:"limiter" json:"limiter"`
	Tokens              []TokenConfig `yaml:"tokens" json:"tokens"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = int(DefaultPollInterval / time.Second)
	}
	if c.VestingDays == 0 {
		c.VestingDays = DefaultVestingDays
	}
	if c.Limiter.MaxConcurrent == 0 {
		c.Limiter.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Limiter.MinSpacingMS == 0 {
		c.Limiter.MinSpacingMS = int(DefaultMinSpacing / time.Millisecond)
	}
	if c.Limiter.MaxQueue == 0 {
		c.Limiter.MaxQueue = DefaultMaxQueue
	}
	for i := range c.Tokens {
		if c.Tokens[i].Denomination == 0 {
			c.Tokens[i].Denomination = DefaultDenomination
		}
	}
}

func (c Config) Validate() error {
	if c.Process == "" {
		return fmt.Errorf("process is required")
	}
	if c.NodeURL == "" {
		return fmt.Errorf("node_url is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535")
	}
	if c.PollIntervalSeconds < MinPollIntervalSecond {
		return fmt.Errorf("poll_interval_seconds must be at least %d", MinPollIntervalSecond)
	}
	if c.VestingDays <= 0 {
		return fmt.Errorf("vesting_days must be positive")
	}
	if c.Limiter.MaxConcurrent <= 0 {
		return fmt.Errorf("limiter.max_concurrent must be positive")
	}
	if c.Limiter.MinSpacingMS < 0 {
		return fmt.Errorf("limiter.min_spacing_ms must be non-negative")
	}
	if c.Limiter.MaxQueue <= 0 {
		return fmt.Errorf("limiter.max_queue must be positive")
	}
	for _, t := range c.Tokens {
		if t.Address == "" || t.Symbol == "" {
			return fmt.Errorf("token entries need address and symbol")
		}
	}
	return nil
}

// PollInterval returns the poll cadence as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// MinSpacing returns the limiter dispatch spacing as a duration.
func (c LimiterConfig) MinSpacing() time.Duration {
	return time.Duration(c.MinSpacingMS) * time.Millisecond
}
