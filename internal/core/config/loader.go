package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/slicks/internal/infra/store"
	"github.com/vietddude/slicks/internal/scanning/availability"
	"github.com/vietddude/slicks/internal/scanning/discovery"
	"github.com/vietddude/slicks/internal/scanning/rescan"
)

// DefaultPath is read when no config file is named.
const DefaultPath = "config.yaml"

const (
	defaultURL      = "http://localhost:8086"
	defaultDatabase = "WFR25"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault reads path, but tolerates a missing DefaultPath by falling
// back to environment variables and defaults.
func LoadOrDefault(path string) (*AppConfig, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == DefaultPath && errors.Is(err, fs.ErrNotExist) {
		return Parse(nil)
	}
	return nil, err
}

// Parse decodes YAML content, expanding ${ENV} references, and applies
// environment overrides and defaults.
func Parse(data []byte) (*AppConfig, error) {
	cfg := AppConfig{
		Discovery: discovery.DefaultConfig(),
		Scan:      availability.DefaultConfig(),
		Rescan:    RescanConfig{Config: rescan.DefaultConfig()},
	}

	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg.Store)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv fills store fields the file left empty from INFLUX_* variables.
func applyEnv(s *store.Config) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&s.URL, "INFLUX_URL")
	fill(&s.Token, "INFLUX_TOKEN")
	fill(&s.Org, "INFLUX_ORG")
	fill(&s.Database, "INFLUX_DB")
	fill(&s.Schema, "INFLUX_SCHEMA")
	fill(&s.Table, "INFLUX_TABLE")
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = store.BackendFlight
	}
	if cfg.Store.URL == "" {
		cfg.Store.URL = defaultURL
	}
	if cfg.Store.Database == "" {
		cfg.Store.Database = defaultDatabase
	}
	if cfg.Store.Schema == "" {
		cfg.Store.Schema = store.DefaultSchema
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = cfg.Store.Database
	}
	if cfg.Metrics.MaxBacklog == 0 {
		cfg.Metrics.MaxBacklog = 1000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate rejects settings the workflows cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Store.Backend {
	case store.BackendFlight, store.BackendPostgres:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := availability.ParseBinSize(c.Scan.Bin); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if c.Discovery.MaxWorkers < 0 || c.Scan.MaxWorkers < 0 {
		return errors.New("max_workers must not be negative")
	}
	return nil
}
