// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config defines the ironlayer control-plane configuration schema
// and helpers for loading and validating config files.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ironlayer/pkg/sqltoolkit"
)

// ErrConfigNotFound is returned when the config file does not exist at the
// given path.
var ErrConfigNotFound = errors.New("ironlayer config not found")

// Config is the top-level control-plane configuration.
type Config struct {
	Project     ProjectConfig     `yaml:"project"`
	Database    DatabaseConfig    `yaml:"database"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Planner     PlannerConfig     `yaml:"planner"`
	Lock        LockConfig        `yaml:"lock"`
	ClusterRate map[string]float64 `yaml:"cluster_rates"`
}

// ProjectConfig describes project-level settings.
type ProjectConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"` // "dev", "staging", "production"
	TenantID    string `yaml:"tenant_id"`
}

// DatabaseConfig describes the Postgres connection used by the state
// repository.
type DatabaseConfig struct {
	DSN         string `yaml:"dsn"`
	MaxConns    int32  `yaml:"max_conns"`
	ConnTimeout int    `yaml:"conn_timeout_seconds"`
}

// ExecutorConfig selects and configures the compute backend.
type ExecutorConfig struct {
	Backend      string `yaml:"backend"` // "local" or "warehouse"
	WarehouseDSN string `yaml:"warehouse_dsn,omitempty"`
	Dialect      string `yaml:"dialect"` // "duckdb", "databricks", or "redshift"
}

// PlannerConfig holds planner defaults.
type PlannerConfig struct {
	DefaultLookbackDays int `yaml:"default_lookback_days"`
}

// LockConfig holds advisory-lock defaults.
type LockConfig struct {
	DefaultTTLSeconds int `yaml:"default_ttl_seconds"`
}

// DefaultConfigPath returns the default config path for the current working
// directory.
func DefaultConfigPath() string {
	return "ironlayer.yml"
}

// Exists reports whether a config file exists at the given path.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Load reads and validates the config from the given path.
//
// It returns ErrConfigNotFound if the file does not exist.
func Load(path string) (*Config, error) {
	exists, err := Exists(path)
	if err != nil {
		return nil, fmt.Errorf("checking config existence: %w", err)
	}
	if !exists {
		return nil, ErrConfigNotFound
	}

	// nolint:gosec // G304: reading config file from an operator-supplied path is expected
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config populated with sensible defaults, to be
// overlaid by a YAML document.
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{Backend: "local", Dialect: "duckdb"},
		Planner:  PlannerConfig{DefaultLookbackDays: 30},
		Lock:     LockConfig{DefaultTTLSeconds: 3600},
		ClusterRate: map[string]float64{
			"small":  0.10,
			"medium": 0.40,
			"large":  1.60,
		},
	}
}

func validate(cfg *Config) error {
	if cfg.Project.Name == "" {
		return errors.New("config: project.name must be non-empty")
	}
	if cfg.Project.TenantID == "" {
		return errors.New("config: project.tenant_id must be non-empty")
	}
	switch cfg.Project.Environment {
	case "dev", "staging", "production":
	default:
		return fmt.Errorf("config: project.environment must be one of dev|staging|production, got %q", cfg.Project.Environment)
	}

	if cfg.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}

	switch cfg.Executor.Backend {
	case "local", "warehouse":
	default:
		return fmt.Errorf("config: executor.backend must be local|warehouse, got %q", cfg.Executor.Backend)
	}
	if cfg.Executor.Backend == "warehouse" && cfg.Executor.WarehouseDSN == "" {
		return errors.New("config: executor.warehouse_dsn is required when executor.backend is warehouse")
	}
	switch cfg.Executor.Dialect {
	case "duckdb", "databricks", "redshift":
	default:
		return fmt.Errorf("config: executor.dialect must be duckdb|databricks|redshift, got %q", cfg.Executor.Dialect)
	}

	if cfg.Planner.DefaultLookbackDays < 0 {
		return errors.New("config: planner.default_lookback_days must be >= 0")
	}
	if cfg.Lock.DefaultTTLSeconds < 1 {
		return errors.New("config: lock.default_ttl_seconds must be >= 1")
	}

	return nil
}

// IsProduction reports whether the configured environment is production.
func (c *Config) IsProduction() bool {
	return c.Project.Environment == "production"
}

// IsDev reports whether the configured environment is dev.
func (c *Config) IsDev() bool {
	return c.Project.Environment == "dev"
}

// Dialect returns the configured SQL dialect.
func (c *Config) Dialect() sqltoolkit.Dialect {
	return sqltoolkit.Dialect(c.Executor.Dialect)
}

// CostRate returns the USD/second rate for a cluster size, or an error if
// unknown.
func (c *Config) CostRate(clusterSize string) (float64, error) {
	if clusterSize == "" {
		clusterSize = "small"
	}
	rate, ok := c.ClusterRate[clusterSize]
	if !ok {
		return 0, fmt.Errorf("unknown cluster size %q", clusterSize)
	}
	return rate, nil
}
