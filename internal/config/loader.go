package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"routerd/internal/common/fsutil"
	"routerd/internal/registry"
	"routerd/internal/tracing"
	"routerd/pkg/types"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultAddr              = ":8080"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "console"
	DefaultMaxBodyBytes      = 1 << 20
	DefaultTickIntervalMs    = 250
	DefaultTimeoutMs         = 60000
	DefaultShutdownTimeoutMs = 10000
	DefaultOverheadFactor    = 1.1
	DefaultMaxTokens         = 1024
	DefaultEventsChannel     = "routerd:events"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat    string `json:"log_format" yaml:"log_format" toml:"log_format"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	// RequestTimeoutMs bounds an HTTP task request including queueing (0 = unbounded).
	RequestTimeoutMs int `json:"request_timeout_ms" yaml:"request_timeout_ms" toml:"request_timeout_ms"`

	CORS      CORSConfig       `json:"cors" yaml:"cors" toml:"cors"`
	Scheduler SchedulerConfig  `json:"scheduler" yaml:"scheduler" toml:"scheduler"`
	Tokens    TokensConfig     `json:"tokens" yaml:"tokens" toml:"tokens"`
	Events    EventsConfig     `json:"events" yaml:"events" toml:"events"`
	Tracing   TracingConfig    `json:"tracing" yaml:"tracing" toml:"tracing"`
	Endpoints []types.Endpoint `json:"deployments" yaml:"deployments" toml:"deployments"`
}

// CORSConfig is opt-in; disabled means no CORS middleware.
type CORSConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

type SchedulerConfig struct {
	// MaxRetries: 0 selects the default (3), -1 disables retries.
	MaxRetries        int   `json:"max_retries" yaml:"max_retries" toml:"max_retries"`
	TickIntervalMs    int   `json:"tick_interval_ms" yaml:"tick_interval_ms" toml:"tick_interval_ms"`
	DefaultTimeoutMs  int   `json:"default_timeout_ms" yaml:"default_timeout_ms" toml:"default_timeout_ms"`
	ShutdownTimeoutMs int   `json:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms" toml:"shutdown_timeout_ms"`
	WindowsMs         []int `json:"windows_ms" yaml:"windows_ms" toml:"windows_ms"`
}

// Windows converts WindowsMs; nil selects the scheduler defaults.
func (s SchedulerConfig) Windows() []time.Duration {
	if len(s.WindowsMs) == 0 {
		return nil
	}
	out := make([]time.Duration, 0, len(s.WindowsMs))
	for _, ms := range s.WindowsMs {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}

type TokensConfig struct {
	// Encoding forces a tiktoken encoding, or "heuristic". Empty resolves from the model.
	Encoding         string  `json:"encoding" yaml:"encoding" toml:"encoding"`
	OverheadFactor   float64 `json:"overhead_factor" yaml:"overhead_factor" toml:"overhead_factor"`
	DefaultMaxTokens int     `json:"default_max_tokens" yaml:"default_max_tokens" toml:"default_max_tokens"`
}

type EventsConfig struct {
	Redis RedisConfig `json:"redis" yaml:"redis" toml:"redis"`
}

// RedisConfig enables lifecycle event publishing when Addr is set.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	Password string `json:"password" yaml:"password" toml:"password"`
	DB       int    `json:"db" yaml:"db" toml:"db"`
	Channel  string `json:"channel" yaml:"channel" toml:"channel"`
}

// TracingConfig selects the OpenTelemetry exporter. An empty or "none"
// exporter disables tracing.
type TracingConfig struct {
	Exporter    string            `json:"exporter" yaml:"exporter" toml:"exporter"`
	Endpoint    string            `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Insecure    bool              `json:"insecure" yaml:"insecure" toml:"insecure"`
	Headers     map[string]string `json:"headers" yaml:"headers" toml:"headers"`
	SampleRatio float64           `json:"sample_ratio" yaml:"sample_ratio" toml:"sample_ratio"`
	Environment string            `json:"environment" yaml:"environment" toml:"environment"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := fsutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Scheduler.TickIntervalMs == 0 {
		c.Scheduler.TickIntervalMs = DefaultTickIntervalMs
	}
	if c.Scheduler.DefaultTimeoutMs == 0 {
		c.Scheduler.DefaultTimeoutMs = DefaultTimeoutMs
	}
	if c.Scheduler.ShutdownTimeoutMs == 0 {
		c.Scheduler.ShutdownTimeoutMs = DefaultShutdownTimeoutMs
	}
	if c.Tokens.OverheadFactor == 0 {
		c.Tokens.OverheadFactor = DefaultOverheadFactor
	}
	if c.Tokens.DefaultMaxTokens == 0 {
		c.Tokens.DefaultMaxTokens = DefaultMaxTokens
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = tracing.ExporterNone
	}
	if c.Events.Redis.Addr != "" && c.Events.Redis.Channel == "" {
		c.Events.Redis.Channel = DefaultEventsChannel
	}
}

// Validate reports every problem at once. Call after ApplyDefaults.
func (c Config) Validate() error {
	var errs error
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = multierr.Append(errs, fmt.Errorf("log_format: must be console or json, got %q", c.LogFormat))
	}
	if c.MaxBodyBytes < 0 {
		errs = multierr.Append(errs, fmt.Errorf("max_body_bytes: must not be negative"))
	}
	if c.RequestTimeoutMs < 0 {
		errs = multierr.Append(errs, fmt.Errorf("request_timeout_ms: must not be negative"))
	}
	if c.Scheduler.MaxRetries < -1 {
		errs = multierr.Append(errs, fmt.Errorf("scheduler.max_retries: must be >= -1"))
	}
	if c.Scheduler.TickIntervalMs < 0 || c.Scheduler.DefaultTimeoutMs < 0 || c.Scheduler.ShutdownTimeoutMs < 0 {
		errs = multierr.Append(errs, fmt.Errorf("scheduler: durations must not be negative"))
	}
	for i, w := range c.Scheduler.WindowsMs {
		if w <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("scheduler.windows_ms[%d]: must be positive", i))
		}
	}
	if c.Tokens.OverheadFactor < 1 {
		errs = multierr.Append(errs, fmt.Errorf("tokens.overhead_factor: must be >= 1"))
	}
	if c.Tokens.DefaultMaxTokens < 0 {
		errs = multierr.Append(errs, fmt.Errorf("tokens.default_max_tokens: must not be negative"))
	}
	if !tracing.ValidExporter(c.Tracing.Exporter) {
		errs = multierr.Append(errs, fmt.Errorf("tracing.exporter: unknown exporter %q", c.Tracing.Exporter))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = multierr.Append(errs, fmt.Errorf("tracing.sample_ratio: must be within [0, 1]"))
	}
	if len(c.Endpoints) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("deployments: at least one endpoint is required"))
	} else if _, err := registry.Flatten(c.Endpoints); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}
