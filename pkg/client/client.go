// Package client provides the public query engine API.
//
// A client owns one connection pool, one executor and one transaction
// coordinator:
//
//	c := client.New(client.WithDatabaseURL("postgresql://localhost/shop?connection_limit=5"))
//	if err := c.Connect(ctx); err != nil {
//		return err
//	}
//	defer c.Disconnect(ctx)
//
//	rs, err := c.Execute(ctx, &domain.Query{
//		Operation: domain.FindMany,
//		Model:     "User",
//		Filter:    filter.JSON("meta", filter.P("tags"), filter.JSONArrayContains, filter.Array{filter.String("admin")}),
//	})
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/satishbabariya/prisma-engine-go/internal/adapters/database"
	"github.com/satishbabariya/prisma-engine-go/internal/adapters/telemetry"
	"github.com/satishbabariya/prisma-engine-go/internal/config"
	"github.com/satishbabariya/prisma-engine-go/internal/core/database/pool"
	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/cache"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/executor"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/input"
	"github.com/satishbabariya/prisma-engine-go/internal/core/transaction"
	"github.com/satishbabariya/prisma-engine-go/internal/debug"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// ErrNotConnected is returned by operations on a client that is not
// connected.
var ErrNotConnected = errors.New("client is not connected")

// Client executes logical queries against one datasource.
type Client struct {
	config *Config

	mu            sync.RWMutex
	pool          *pool.Pool
	exec          *executor.Executor
	coord         *transaction.Coordinator
	telemetry     telemetry.Telemetry
	closer        io.Closer
	serverVersion *database.ServerVersion
	middleware    []Middleware
}

// New creates a client. Call Connect before executing queries.
func New(opts ...Option) *Client {
	cfg := DefaultConfig()
	ApplyOptions(cfg, opts...)
	return &Client{config: cfg}
}

// Use adds middleware to the Execute chain. Middleware added first runs
// outermost.
func (c *Client) Use(mw Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, mw)
}

// Connect builds the pool and, when enabled, checks the server version.
// Connections are opened lazily except for the version check.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool != nil {
		return nil
	}

	d, connector, poolCfg, err := c.resolve()
	if err != nil {
		return err
	}

	tel := c.config.Telemetry
	if tel == nil {
		tel, err = telemetry.Open(&telemetry.Config{Type: c.config.TelemetryType})
		if err != nil {
			c.closeConnector()
			return err
		}
	}

	p, err := pool.New(connector, poolCfg, pool.WithObserver(telemetry.NewPoolObserver(tel)))
	if err != nil {
		c.closeConnector()
		return err
	}
	exec, err := executor.New(p, d,
		executor.WithStatementCache(c.config.CacheSize, c.config.CacheTTL),
		executor.WithTelemetry(tel),
	)
	if err != nil {
		c.abortConnect(ctx, p)
		return err
	}
	coord, err := transaction.New(exec)
	if err != nil {
		c.abortConnect(ctx, p)
		return err
	}

	if c.config.CheckServerVersion && d != dialect.Document {
		sv, err := checkServerVersion(ctx, p, d)
		if err != nil {
			c.abortConnect(ctx, p)
			return err
		}
		c.serverVersion = sv
	}

	c.pool, c.exec, c.coord, c.telemetry = p, exec, coord, tel
	debug.Info("client connected", "dialect", d, "capacity", poolCfg.Capacity, "wait_timeout", poolCfg.WaitTimeout)
	return nil
}

// resolve picks the dialect, connector and pool configuration.
func (c *Client) resolve() (dialect.Name, pool.Connector, pool.Config, error) {
	cfg := c.config
	poolCfg := pool.DefaultConfig()
	var (
		d         dialect.Name
		connector pool.Connector
	)

	if cfg.Connector != nil {
		if _, err := dialect.For(cfg.Dialect); err != nil {
			return "", nil, poolCfg, err
		}
		d, connector = cfg.Dialect, cfg.Connector
		if cfg.DatabaseURL != "" {
			ds, err := config.ParseDatasource(cfg.DatabaseURL)
			if err != nil {
				return "", nil, poolCfg, err
			}
			poolCfg = ds.Pool
		}
	} else {
		if cfg.DatabaseURL == "" {
			return "", nil, poolCfg, fmt.Errorf("no database URL configured")
		}
		ds, err := config.ParseDatasource(cfg.DatabaseURL)
		if err != nil {
			return "", nil, poolCfg, err
		}
		dbCfg := ds.DatabaseConfig()
		if cfg.Driver != "" {
			dbCfg.Driver = cfg.Driver
		}
		sqlConnector, err := database.NewSQLConnector(dbCfg)
		if err != nil {
			return "", nil, poolCfg, err
		}
		d, connector, poolCfg = ds.Dialect, sqlConnector, ds.Pool
		c.closer = sqlConnector
	}

	if cfg.PoolCapacity > 0 {
		poolCfg.Capacity = cfg.PoolCapacity
	}
	if cfg.PoolTimeout != nil {
		poolCfg.WaitTimeout = *cfg.PoolTimeout
	}
	if err := poolCfg.Validate(); err != nil {
		c.closeConnector()
		return "", nil, poolCfg, err
	}
	return d, connector, poolCfg, nil
}

func checkServerVersion(ctx context.Context, p *pool.Pool, d dialect.Name) (*database.ServerVersion, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(conn)

	runner, ok := conn.Session().(database.Runner)
	if !ok {
		return nil, fmt.Errorf("session %T cannot run SQL statements", conn.Session())
	}
	sv, err := database.QueryServerVersion(ctx, runner, d)
	if err != nil {
		if qerr.KindOf(err) == qerr.KindConnection {
			conn.MarkBroken()
		}
		return nil, err
	}
	debug.Debug("server version", "version", sv.String())
	if err := sv.Check(); err != nil {
		return nil, err
	}
	return sv, nil
}

func (c *Client) abortConnect(ctx context.Context, p *pool.Pool) {
	if err := p.Shutdown(ctx); err != nil {
		debug.Warn("pool shutdown failed", "error", err)
	}
	c.closeConnector()
}

func (c *Client) closeConnector() {
	if c.closer == nil {
		return
	}
	if err := c.closer.Close(); err != nil {
		debug.Warn("connector close failed", "error", err)
	}
	c.closer = nil
}

// Disconnect shuts the pool down, waiting for busy connections until ctx is
// done, and closes the connector. The client can be connected again.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool == nil {
		return nil
	}

	err := c.pool.Shutdown(ctx)
	c.closeConnector()
	if tErr := c.telemetry.Close(ctx); tErr != nil && err == nil {
		err = tErr
	}
	c.pool, c.exec, c.coord, c.telemetry = nil, nil, nil, nil
	debug.Info("client disconnected")
	return err
}

func (c *Client) executor() (*executor.Executor, []Middleware, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.exec == nil {
		return nil, nil, ErrNotConnected
	}
	return c.exec, c.middleware, nil
}

// Execute runs q through the middleware chain on a pooled connection.
func (c *Client) Execute(ctx context.Context, q *domain.Query) (*domain.ResultSet, error) {
	exec, mws, err := c.executor()
	if err != nil {
		return nil, err
	}
	if c.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.QueryTimeout)
		defer cancel()
	}
	return chain(exec.Execute, mws)(ctx, q)
}

// ExecuteJSON decodes a JSON query document and executes it.
func (c *Client) ExecuteJSON(ctx context.Context, doc []byte) (*domain.ResultSet, error) {
	q, err := input.Decode(doc)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, q)
}

// ExecuteRetry executes q, retrying pool timeouts and connection failures.
func (c *Client) ExecuteRetry(ctx context.Context, q *domain.Query, opts ...RetryOption) (*domain.ResultSet, error) {
	return RetryWithResult(ctx, func() (*domain.ResultSet, error) {
		return c.Execute(ctx, q)
	}, opts...)
}

// FindMany executes q and maps the rows into dest, a pointer to a slice of
// structs tagged with `db`.
func (c *Client) FindMany(ctx context.Context, q *domain.Query, dest any) error {
	exec, _, err := c.executor()
	if err != nil {
		return err
	}
	return exec.ExecuteInto(ctx, q, dest)
}

// QueryRaw runs a raw SQL query and returns its rows.
func (c *Client) QueryRaw(ctx context.Context, query string, args ...any) (*domain.ResultSet, error) {
	return c.raw(ctx, query, args, true)
}

// ExecuteRaw runs a raw SQL statement.
func (c *Client) ExecuteRaw(ctx context.Context, query string, args ...any) (*domain.ResultSet, error) {
	return c.raw(ctx, query, args, false)
}

func (c *Client) raw(ctx context.Context, query string, args []any, returnsRows bool) (*domain.ResultSet, error) {
	exec, _, err := c.executor()
	if err != nil {
		return nil, err
	}
	return exec.ExecuteRaw(ctx, domain.NewPreparedStatement(query, args, exec.Dialect(), returnsRows))
}

// Prepare validates and compiles q without executing it.
func (c *Client) Prepare(q *domain.Query) (*domain.PreparedStatement, error) {
	exec, _, err := c.executor()
	if err != nil {
		return nil, err
	}
	return exec.Prepare(q)
}

// Transaction runs ops atomically. A failure is returned as a
// *transaction.StepError naming the first failing operation.
func (c *Client) Transaction(ctx context.Context, ops []*domain.Query, opts *transaction.Options) ([]*domain.ResultSet, error) {
	coord, err := c.coordinator()
	if err != nil {
		return nil, err
	}
	return coord.Run(ctx, ops, opts)
}

// Interactive runs fn in a transaction that commits when fn returns nil.
func (c *Client) Interactive(ctx context.Context, opts *transaction.Options, fn func(tx *transaction.Tx) error) error {
	coord, err := c.coordinator()
	if err != nil {
		return err
	}
	return coord.Interactive(ctx, opts, fn)
}

func (c *Client) coordinator() (*transaction.Coordinator, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.coord == nil {
		return nil, ErrNotConnected
	}
	return c.coord, nil
}

// HealthCheck pings idle connections and discards the ones that fail.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	p := c.pool
	c.mu.RUnlock()
	if p == nil {
		return ErrNotConnected
	}
	return p.HealthCheck(ctx)
}

// Stats returns pool statistics. ok is false when not connected.
func (c *Client) Stats() (stats pool.Stats, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pool == nil {
		return pool.Stats{}, false
	}
	return c.pool.Stats(), true
}

// CacheStats returns statement cache statistics. ok is false when not
// connected or caching is disabled.
func (c *Client) CacheStats() (stats cache.Stats, ok bool) {
	exec, _, err := c.executor()
	if err != nil {
		return cache.Stats{}, false
	}
	return exec.CacheStats()
}

// Dialect returns the connected dialect, or "" when not connected.
func (c *Client) Dialect() dialect.Name {
	exec, _, err := c.executor()
	if err != nil {
		return ""
	}
	return exec.Dialect()
}

// ServerVersion returns the version found by the version check, if it ran.
func (c *Client) ServerVersion() *database.ServerVersion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverVersion
}

// Telemetry returns the telemetry adapter, or nil when not connected.
func (c *Client) Telemetry() telemetry.Telemetry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.telemetry
}
