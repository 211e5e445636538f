package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"  // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib"  // PostgreSQL driver (pgx)
	_ "github.com/lib/pq"               // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"     // SQLite driver
	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/satishbabariya/prisma-engine-go/internal/core/database/pool"
	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
)

// SQLConnector opens pool sessions on a database/sql handle. The handle
// keeps no idle connections of its own, so closing a session closes the
// physical connection and the engine pool alone bounds concurrency.
type SQLConnector struct {
	db     *sql.DB
	config Config
}

// NewSQLConnector opens a handle for config. No connection is made until
// the first Connect.
func NewSQLConnector(config Config) (*SQLConnector, error) {
	if config.Driver == "" {
		config.Driver = DefaultDriver(config.Dialect)
	}
	if config.Driver == "" {
		return nil, fmt.Errorf("no SQL driver for dialect %q", config.Dialect)
	}
	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxIdleConns(0)
	db.SetMaxOpenConns(0)
	return &SQLConnector{db: db, config: config}, nil
}

// Dialect returns the dialect of the connected database.
func (c *SQLConnector) Dialect() dialect.Name {
	return c.config.Dialect
}

// Connect opens a dedicated session.
func (c *SQLConnector) Connect(ctx context.Context) (pool.Session, error) {
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &Session{conn: conn}, nil
}

// Close closes the underlying handle.
func (c *SQLConnector) Close() error {
	return c.db.Close()
}

// Session is one dedicated database/sql connection.
type Session struct {
	conn *sql.Conn
}

// NewSession wraps an existing connection.
func NewSession(conn *sql.Conn) *Session {
	return &Session{conn: conn}
}

// Ping checks the connection.
func (s *Session) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close destroys the connection. The handle keeps no idle connections, so
// the driver connection is closed rather than parked.
func (s *Session) Close() error {
	return s.conn.Close()
}

// ExecContext executes a statement that returns no rows.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, query, args...)
}

// QueryContext executes a statement that returns rows.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query, args...)
}

// BeginTx starts a transaction on the session.
func (s *Session) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return s.conn.BeginTx(ctx, opts)
}

var (
	_ pool.Connector = (*SQLConnector)(nil)
	_ pool.Session   = (*Session)(nil)
	_ Runner         = (*Session)(nil)
	_ TxStarter      = (*Session)(nil)
)
