// Package config loads the application configuration from an optional
// YAML file overridden by LFORGE_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"licenseforge/internal/infrastructure"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig                 `yaml:"server"`
	Storage StorageConfig                `yaml:"storage"`
	Logging infrastructure.LoggingConfig `yaml:"logging"`
	OTel    infrastructure.OTelConfig    `yaml:"otel"`
	Limits  LimitsConfig                 `yaml:"limits"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `yaml:"port" envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"SERVER_REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"SERVER_ALLOWED_ORIGINS"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER" default:"memory"`
	DSN    string `yaml:"dsn" envconfig:"STORAGE_DSN"`
}

// LimitsConfig controls request throttling.
type LimitsConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"LIMITS_RPS" default:"100"`
	Burst             int     `yaml:"burst" envconfig:"LIMITS_BURST" default:"200"`
}

// Load reads the YAML file named by LFORGE_CONFIG_FILE (if set), then
// applies environment overrides and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("LFORGE_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("LFORGE", cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage driver postgres requires a dsn")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Limits.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
