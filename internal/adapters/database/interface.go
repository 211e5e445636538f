// Package database implements SQL connectors, driver error classification
// and server version checks for the supported databases.
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
)

// Runner executes statements. Sessions and transactions both implement it.
type Runner interface {
	// ExecContext executes a statement that returns no rows.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)

	// QueryContext executes a statement that returns rows.
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// TxStarter begins transactions on a single session.
type TxStarter interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// CommandRunner executes document-store commands. Connectors for document
// stores are supplied by the caller and return sessions implementing it.
type CommandRunner interface {
	RunCommand(ctx context.Context, command string) (*sql.Rows, error)
}

// Config holds database connection configuration.
type Config struct {
	// Driver is the database/sql driver name.
	Driver string
	// DSN is the driver-specific data source name.
	DSN string
	// Dialect selects statement rendering.
	Dialect dialect.Name
	// ConnectTimeout bounds each new session. Zero means no bound.
	ConnectTimeout time.Duration
}

// Driver names registered by this package.
const (
	DriverPostgres  = "postgres"
	DriverPgx       = "pgx"
	DriverMySQL     = "mysql"
	DriverSQLite    = "sqlite3"
	DriverSQLServer = "sqlserver"
)

// DefaultDriver returns the driver used for a dialect when none is chosen.
func DefaultDriver(d dialect.Name) string {
	switch d {
	case dialect.Postgres:
		return DriverPostgres
	case dialect.MySQL:
		return DriverMySQL
	case dialect.SQLite:
		return DriverSQLite
	case dialect.SQLServer:
		return DriverSQLServer
	}
	return ""
}
