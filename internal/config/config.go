package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file.
const (
	EnvBaseURL  = "STABLEWATCH_BASE_URL"
	EnvAPIKey   = "STABLEWATCH_API_KEY"
	EnvHTTPPort = "HTTP_PORT"
	EnvLogLevel = "STABLEWATCH_LOG_LEVEL"
)

// Config is the complete service configuration
type Config struct {
	Upstream UpstreamConfig `yaml:"upstream"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// UpstreamConfig describes the stablecoin backend and how hard we may hit it
type UpstreamConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	StablecoinLimit int           `yaml:"stablecoin_limit"` // page size of the stablecoin list
	OperationLimit  int           `yaml:"operation_limit"`  // page size of the operation list
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	StatsTimeout    time.Duration `yaml:"stats_timeout"` // per stats call
	MaxRetries      int           `yaml:"max_retries"`
	Backoff         BackoffConfig `yaml:"backoff"`
	RPS             float64       `yaml:"rps"`
	Burst           int           `yaml:"burst"`
	MaxConcurrency  int           `yaml:"max_concurrency"`
	UserAgent       string        `yaml:"user_agent"`
	Circuit         CircuitConfig `yaml:"circuit"`
}

// BackoffConfig represents exponential backoff configuration
type BackoffConfig struct {
	Base time.Duration `yaml:"base"`
	Max  time.Duration `yaml:"max"`
}

// CircuitConfig represents circuit breaker configuration
type CircuitConfig struct {
	MaxRequests         uint32        `yaml:"max_requests"`         // probes allowed while half-open
	Interval            time.Duration `yaml:"interval"`             // closed-state count reset
	Timeout             time.Duration `yaml:"timeout"`              // open → half-open
	ErrorRateThreshold  float64       `yaml:"error_rate_threshold"` // percent over >= 10 requests, 0 disables
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type MetricsConfig struct {
	TimelineDays int `yaml:"timeline_days"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration that only lacks the backend location and
// key.
func Default() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			StablecoinLimit: 100,
			OperationLimit:  200,
			RequestTimeout:  10 * time.Second,
			StatsTimeout:    10 * time.Second,
			MaxRetries:      2,
			Backoff: BackoffConfig{
				Base: 250 * time.Millisecond,
				Max:  4 * time.Second,
			},
			RPS:            10,
			Burst:          20,
			MaxConcurrency: 8,
			UserAgent:      "stablewatch/1.0",
			Circuit: CircuitConfig{
				MaxRequests:         2,
				Interval:            60 * time.Second,
				Timeout:             30 * time.Second,
				ErrorRateThreshold:  50,
				ConsecutiveFailures: 5,
			},
		},
		Refresh: RefreshConfig{
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Metrics: MetricsConfig{TimelineDays: 10},
		Log:     LogConfig{Level: "info"},
	}
}

// LoadFile reads the YAML file at path over the defaults without validating.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Overrides are command line values. Empty fields leave the loaded value.
type Overrides struct {
	BaseURL  string
	LogLevel string
}

func (o Overrides) apply(c *Config) {
	if o.BaseURL != "" {
		c.Upstream.BaseURL = o.BaseURL
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
}

// Load resolves defaults, the YAML file at path, the environment and the
// overrides, in that order, and validates the result. An empty path skips
// the file.
func Load(path string, overrides Overrides) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	overrides.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.Upstream.BaseURL = v
	}
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.Upstream.APIKey = v
	}
	if v, ok := lookup(EnvHTTPPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q: %w", EnvHTTPPort, v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if err := c.Upstream.Validate(); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh: interval must be positive, got %s", c.Refresh.Interval)
	}
	if c.Refresh.Timeout <= 0 {
		return fmt.Errorf("refresh: timeout must be positive, got %s", c.Refresh.Timeout)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Metrics.TimelineDays <= 0 {
		return fmt.Errorf("metrics: timeline_days must be positive, got %d", c.Metrics.TimelineDays)
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	return nil
}

// Validate ensures the backend configuration is usable
func (u *UpstreamConfig) Validate() error {
	if u.BaseURL == "" {
		return errors.New("base_url cannot be empty (set " + EnvBaseURL + ")")
	}
	parsed, err := url.Parse(u.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL, got %q", u.BaseURL)
	}
	if u.APIKey == "" {
		return errors.New("api_key cannot be empty (set " + EnvAPIKey + ")")
	}
	if u.StablecoinLimit <= 0 {
		return fmt.Errorf("stablecoin_limit must be positive, got %d", u.StablecoinLimit)
	}
	if u.OperationLimit <= 0 {
		return fmt.Errorf("operation_limit must be positive, got %d", u.OperationLimit)
	}
	if u.RequestTimeout <= 0 || u.StatsTimeout <= 0 {
		return errors.New("request_timeout and stats_timeout must be positive")
	}
	if u.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", u.MaxRetries)
	}
	if u.Backoff.Base <= 0 || u.Backoff.Max < u.Backoff.Base {
		return fmt.Errorf("backoff: max (%s) must be >= base (%s) > 0", u.Backoff.Max, u.Backoff.Base)
	}
	if u.RPS < 0 {
		return fmt.Errorf("rps cannot be negative, got %f", u.RPS)
	}
	if u.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", u.MaxConcurrency)
	}
	if u.Circuit.ConsecutiveFailures == 0 {
		return errors.New("circuit: consecutive_failures must be positive")
	}
	if u.Circuit.ErrorRateThreshold < 0 || u.Circuit.ErrorRateThreshold > 100 {
		return fmt.Errorf("circuit: error_rate_threshold must be between 0 and 100, got %g", u.Circuit.ErrorRateThreshold)
	}
	if u.Circuit.Timeout <= 0 {
		return fmt.Errorf("circuit: timeout must be positive, got %s", u.Circuit.Timeout)
	}
	return nil
}

// RedactedAPIKey returns the key with all but the last four characters
// masked, for logging.
func (u *UpstreamConfig) RedactedAPIKey() string {
	if len(u.APIKey) <= 4 {
		return strings.Repeat("*", len(u.APIKey))
	}
	return strings.Repeat("*", len(u.APIKey)-4) + u.APIKey[len(u.APIKey)-4:]
}
