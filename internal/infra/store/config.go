package store

import "time"

const (
	BackendFlight   = "flight"
	BackendPostgres = "postgres"

	DefaultSchema = "iox"
)

// Config holds connection settings for the remote store.
type Config struct {
	Backend     string        `yaml:"backend"` // flight, postgres
	URL         string        `yaml:"url"`
	Token       string        `yaml:"token"`
	Org         string        `yaml:"org"`
	Database    string        `yaml:"database"`
	Schema      string        `yaml:"schema"`
	Table       string        `yaml:"table"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// TableRef returns the quoted table queried by the workflows. Schema falls back
// to "iox" and table to the database name.
func (c Config) TableRef() string {
	schema := c.Schema
	if schema == "" {
		schema = DefaultSchema
	}
	table := c.Table
	if table == "" {
		table = c.Database
	}
	return QuoteTable(schema, table)
}

// Dataset names the data source in queues and catalogs.
func (c Config) Dataset() string {
	if c.Table != "" && c.Table != c.Database {
		return c.Database + "." + c.Table
	}
	return c.Database
}
