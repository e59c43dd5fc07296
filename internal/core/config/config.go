package config

import (
	"github.com/vietddude/slicks/internal/infra/redis"
	"github.com/vietddude/slicks/internal/infra/storage/postgres"
	"github.com/vietddude/slicks/internal/infra/store"
	"github.com/vietddude/slicks/internal/scanning/availability"
	"github.com/vietddude/slicks/internal/scanning/discovery"
	"github.com/vietddude/slicks/internal/scanning/rescan"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Store     store.Config        `yaml:"store"`
	Discovery discovery.Config    `yaml:"discovery"`
	Scan      availability.Config `yaml:"scan"`
	Rescan    RescanConfig        `yaml:"rescan"`
	Redis     redis.Config        `yaml:"redis"`
	Database  postgres.Config     `yaml:"database"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	Logging   LoggingConfig       `yaml:"logging"`
}

// RescanConfig controls requeueing and draining of incomplete ranges.
type RescanConfig struct {
	rescan.Config `yaml:",inline"`
	// AutoQueue pushes incomplete ranges to Redis after every run.
	AutoQueue bool `yaml:"auto_queue"`
}

// MetricsConfig holds the metrics/health HTTP server settings.
type MetricsConfig struct {
	Addr       string `yaml:"addr"`        // empty disables the server
	MaxBacklog int64  `yaml:"max_backlog"` // queued ranges before health degrades
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
