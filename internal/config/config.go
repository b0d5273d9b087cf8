// Package config loads healthcheck configuration from a YAML file with
// environment variable overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/port-experimental/integration-healthcheck/internal/plugin"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultResyncInterval = 5 * time.Minute
	DefaultOpsPort        = 8080
	DefaultLogLevel       = "info"
)

// Config is the top-level configuration for the healthcheck worker.
type Config struct {
	Port      PortConfig      `yaml:"port"`
	Resync    ResyncConfig    `yaml:"resync"`
	Ops       OpsConfig       `yaml:"ops"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// LogLevel is the zerolog level: trace | debug | info | warn | error.
	LogLevel string `yaml:"log_level"`
}

// PortConfig holds Port API connection settings.
type PortConfig struct {
	// BaseURL overrides the default Port API base URL.
	BaseURL string `yaml:"base_url"`

	// Token is the API token attached to every request. Prefer the
	// PORT_API_TOKEN environment variable over putting it in the file.
	Token string `yaml:"token"`
}

// ResyncConfig controls the resync loop.
type ResyncConfig struct {
	// Interval is how often a resync cycle runs.
	Interval time.Duration `yaml:"interval"`

	// Resources are the resource mappings handed to the plugin. When
	// empty, a single integration resource with defaults is used.
	Resources []plugin.ResourceConfig `yaml:"resources"`
}

// OpsConfig holds the private operational HTTP listener settings.
type OpsConfig struct {
	Port int `yaml:"port"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Load reads configuration from path (optional), applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT_API_TOKEN"); v != "" {
		c.Port.Token = v
	}
	if v := os.Getenv("PORT_BASE_URL"); v != "" {
		c.Port.BaseURL = v
	}
	if v := os.Getenv("OPS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Ops.Port = port
		}
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("OTEL_ENABLED"); v == "true" {
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.Resync.Interval == 0 {
		c.Resync.Interval = DefaultResyncInterval
	}
	if len(c.Resync.Resources) == 0 {
		c.Resync.Resources = []plugin.ResourceConfig{
			{Kind: plugin.KindIntegration},
		}
	}
	if c.Ops.Port == 0 {
		c.Ops.Port = DefaultOpsPort
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Telemetry.OTLPEndpoint == "" {
		c.Telemetry.OTLPEndpoint = "localhost:4317"
	}
}

// Validate checks the configuration for errors fatal at startup.
func (c *Config) Validate() error {
	if c.Port.Token == "" {
		return fmt.Errorf("port token is required (set PORT_API_TOKEN or port.token)")
	}
	for _, resource := range c.Resync.Resources {
		if err := resource.Selector.Validate(); err != nil {
			return fmt.Errorf("resource %q: %w", resource.Kind, err)
		}
	}
	return nil
}
