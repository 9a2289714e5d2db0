// Package config handles the CLI configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the odata CLI configuration.
type Config struct {
	// DataDir is the badger directory holding the entity store.
	DataDir string `toml:"data_dir"`

	// InMemory runs the store without touching disk.
	InMemory bool `toml:"in_memory"`

	// MetricsAddr is the listen address for /metrics; empty disables it.
	MetricsAddr string `toml:"metrics_addr"`

	// Verbose prints annotation events as they occur.
	Verbose bool `toml:"verbose"`

	Cache   CacheConfig   `toml:"cache"`
	Planner PlannerConfig `toml:"planner"`
}

// CacheConfig sizes the plan cache.
type CacheConfig struct {
	MaxSize int      `toml:"max_size"`
	TTL     Duration `toml:"ttl"`
}

// PlannerConfig mirrors the planner options.
type PlannerConfig struct {
	MaxExpandDepth      int  `toml:"max_expand_depth"`
	AllowOpenProperties bool `toml:"allow_open_properties"`
}

// Duration is a time.Duration written as a Go duration string, e.g. "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DataDir: "odata-data",
		Cache: CacheConfig{
			MaxSize: 1000,
			TTL:     Duration{5 * time.Minute},
		},
		Planner: PlannerConfig{
			MaxExpandDepth:      8,
			AllowOpenProperties: true,
		},
	}
}

// Load loads the configuration from path. An empty path means the default
// location; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from a specific path. Keys absent from
// the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	config := Default()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if config.Cache.MaxSize < 0 {
		return nil, fmt.Errorf("config %s: cache.max_size must not be negative", path)
	}
	return config, nil
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "janus-odata", "config.toml")
	}
	return filepath.Join(".", "config.toml")
}
