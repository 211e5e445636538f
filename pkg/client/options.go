// Package client provides client configuration options.
package client

import (
	"time"

	"github.com/satishbabariya/prisma-engine-go/internal/adapters/telemetry"
	"github.com/satishbabariya/prisma-engine-go/internal/config"
	"github.com/satishbabariya/prisma-engine-go/internal/core/database/pool"
	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
)

// Config contains all client configuration options.
type Config struct {
	// DatabaseURL is the datasource URL. Supports PostgreSQL, MySQL, SQLite,
	// SQL Server and, with a custom connector, MongoDB.
	DatabaseURL string

	// Driver overrides the database/sql driver chosen for the URL, such as
	// "pgx" for PostgreSQL.
	Driver string

	// PoolCapacity overrides connection_limit when positive.
	PoolCapacity int

	// PoolTimeout overrides pool_timeout when set. Zero waits without bound.
	PoolTimeout *time.Duration

	// QueryTimeout bounds each Execute call, including the wait for a
	// connection. Zero disables it.
	QueryTimeout time.Duration

	// CacheSize enables the statement cache when positive.
	CacheSize int

	// CacheTTL bounds the age of cached statements.
	// Default: 5 minutes
	CacheTTL time.Duration

	// Telemetry receives query and pool metrics. When nil, TelemetryType
	// selects an adapter.
	Telemetry     telemetry.Telemetry
	TelemetryType string

	// CheckServerVersion rejects servers too old for JSON filtering on
	// Connect.
	CheckServerVersion bool

	// Connector replaces the database/sql connector, for example to run
	// document commands. Dialect must be set with it.
	Connector pool.Connector
	Dialect   dialect.Name
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheTTL:      5 * time.Minute,
		TelemetryType: string(telemetry.KindNoop),
	}
}

// Option is a function that configures the client.
type Option func(*Config)

// WithDatabaseURL sets the database URL.
func WithDatabaseURL(url string) Option {
	return func(c *Config) {
		c.DatabaseURL = url
	}
}

// WithDriver selects the database/sql driver.
func WithDriver(driver string) Option {
	return func(c *Config) {
		c.Driver = driver
	}
}

// WithPoolCapacity sets the maximum number of live connections.
func WithPoolCapacity(n int) Option {
	return func(c *Config) {
		c.PoolCapacity = n
	}
}

// WithPoolTimeout sets how long Execute waits for a free connection.
func WithPoolTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.PoolTimeout = &d
	}
}

// WithQueryTimeout sets the query timeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.QueryTimeout = d
	}
}

// WithStatementCache enables the statement cache.
func WithStatementCache(size int, ttl time.Duration) Option {
	return func(c *Config) {
		c.CacheSize = size
		c.CacheTTL = ttl
	}
}

// WithTelemetry sets the telemetry adapter.
func WithTelemetry(t telemetry.Telemetry) Option {
	return func(c *Config) {
		c.Telemetry = t
	}
}

// WithServerVersionCheck enables the server version check on Connect.
func WithServerVersionCheck(enabled bool) Option {
	return func(c *Config) {
		c.CheckServerVersion = enabled
	}
}

// WithConnector uses connector to open sessions rendered for d.
func WithConnector(d dialect.Name, connector pool.Connector) Option {
	return func(c *Config) {
		c.Dialect = d
		c.Connector = connector
	}
}

// FromConfig applies loaded engine configuration.
func FromConfig(cfg *config.Config) Option {
	return func(c *Config) {
		c.DatabaseURL = cfg.DatabaseURL
		c.Driver = cfg.Driver
		c.PoolCapacity = cfg.PoolCapacity
		c.PoolTimeout = cfg.PoolTimeout
		c.CacheSize = cfg.CacheSize
		if cfg.CacheTTL > 0 {
			c.CacheTTL = cfg.CacheTTL
		}
		if cfg.Telemetry != "" {
			c.TelemetryType = cfg.Telemetry
		}
	}
}

// ApplyOptions applies options to a config.
func ApplyOptions(config *Config, opts ...Option) {
	for _, opt := range opts {
		opt(config)
	}
}
