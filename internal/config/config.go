// Package config loads jobcored's tunables: defaults, then an optional
// YAML file, then environment variables, in that priority order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v2"

	"github.com/hpcflow/jobcore/pkg/cred"
	"github.com/hpcflow/jobcore/pkg/job"
)

// ServerConfig holds network/listener settings.
type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr" env:"JOBCORE_METRICS_ADDR"`
}

// StoreConfig holds the DynamoDB-backed persistence layer's settings.
type StoreConfig struct {
	TableName      string `yaml:"table_name" env:"JOBCORE_STORE_TABLE"`
	StreamsEnabled bool   `yaml:"streams_enabled" env:"JOBCORE_STORE_STREAMS_ENABLED"`
	Region         string `yaml:"region" env:"JOBCORE_STORE_REGION"`
}

// ArrayConfig holds the array-job subsystem's tunables (spec.md §4.1,
// §4.7).
type ArrayConfig struct {
	MaxArraySize    int           `yaml:"max_array_size" env:"JOBCORE_MAX_ARRAY_SIZE"`
	CredRenewEnable bool          `yaml:"cred_renew_enable" env:"JOBCORE_CRED_RENEW_ENABLE"`
	CredRenewPeriod time.Duration `yaml:"cred_renew_period" env:"JOBCORE_CRED_RENEW_PERIOD"`
	CredCachePeriod time.Duration `yaml:"cred_renew_cache_period" env:"JOBCORE_CRED_RENEW_CACHE_PERIOD"`
}

// LoggingConfig controls log/slog's handler selection.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"JOBCORE_LOG_LEVEL"`
	Format string `yaml:"format" env:"JOBCORE_LOG_FORMAT"`
}

// Config is the root of jobcored's configuration tree.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Array   ArrayConfig   `yaml:"array"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns a Config populated with this server's baked-in defaults,
// set explicitly here rather than via envDefault struct tags — env.Parse
// would reapply those tags over an already file-populated Config on every
// field whose environment variable happens to be unset, silently
// discarding the file's value. Filling defaults by hand keeps the
// default < file < env priority Load implements unambiguous.
func Default() *Config {
	return &Config{
		Server: ServerConfig{MetricsAddr: ":9090"},
		Store: StoreConfig{
			TableName:      "jobcore-jobs",
			StreamsEnabled: false,
			Region:         "us-east-1",
		},
		Array: ArrayConfig{
			MaxArraySize:    job.DefaultMaxArraySize,
			CredRenewEnable: false,
			CredRenewPeriod: 3600 * time.Second,
			CredCachePeriod: 7200 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config with priority default < file < environment
// variable, the same ordering quaero's LoadFromFiles uses (minus the
// KV-store replacement step this server has no equivalent of). path may
// be empty, in which case only defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("config: applying environment overrides: %w", err)
	}
	return c, nil
}

// CredTunables adapts ArrayConfig into pkg/cred.Tunables.
func (c *Config) CredTunables() cred.Tunables {
	return cred.Tunables{
		Enable:           c.Array.CredRenewEnable,
		RenewPeriod:      c.Array.CredRenewPeriod,
		CacheRenewPeriod: c.Array.CredCachePeriod,
	}
}

// MaxArraySize exposes ArrayConfig.MaxArraySize with job package's default
// as a fallback for an unset or zero value.
func (c *Config) MaxArraySize() int {
	if c.Array.MaxArraySize <= 0 {
		return job.DefaultMaxArraySize
	}
	return c.Array.MaxArraySize
}
