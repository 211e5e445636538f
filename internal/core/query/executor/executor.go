// Package executor implements query execution.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/satishbabariya/prisma-engine-go/internal/adapters/database"
	"github.com/satishbabariya/prisma-engine-go/internal/adapters/telemetry"
	"github.com/satishbabariya/prisma-engine-go/internal/core/database/pool"
	"github.com/satishbabariya/prisma-engine-go/internal/core/dialect"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/cache"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/compiler"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/mapper"
	"github.com/satishbabariya/prisma-engine-go/internal/debug"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// opRaw labels caller-built statements in logs and metrics.
const opRaw domain.Operation = "raw"

// Option configures an Executor.
type Option func(*Executor)

// WithStatementCache caches compiled statements by query shape. Each hit
// yields a fresh, unconsumed copy.
func WithStatementCache(size int, ttl time.Duration) Option {
	return func(e *Executor) {
		if size > 0 {
			e.cache = cache.New(size, ttl)
		}
	}
}

// WithTelemetry reports query timings and failures to t.
func WithTelemetry(t telemetry.Telemetry) Option {
	return func(e *Executor) {
		if t != nil {
			e.telemetry = t
		}
	}
}

// Executor implements the domain.QueryExecutor interface on top of a
// connection pool.
type Executor struct {
	pool      *pool.Pool
	dialect   dialect.Name
	compiler  domain.QueryCompiler
	mapper    *mapper.ResultMapper
	cache     *cache.StatementCache
	telemetry telemetry.Telemetry
}

// New creates an executor sending statements rendered for d through p.
// A nil pool yields an executor usable only through ExecuteOn.
func New(p *pool.Pool, d dialect.Name, opts ...Option) (*Executor, error) {
	c, err := compiler.New(d)
	if err != nil {
		return nil, err
	}
	e := &Executor{
		pool:      p,
		dialect:   d,
		compiler:  c,
		mapper:    mapper.NewResultMapper(),
		telemetry: telemetry.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dialect returns the dialect statements are rendered for.
func (e *Executor) Dialect() dialect.Name {
	return e.dialect
}

// Pool returns the connection pool.
func (e *Executor) Pool() *pool.Pool {
	return e.pool
}

// CacheStats returns statement cache statistics. ok is false when caching
// is disabled.
func (e *Executor) CacheStats() (stats cache.Stats, ok bool) {
	if e.cache == nil {
		return cache.Stats{}, false
	}
	return e.cache.GetStats(), true
}

// Prepare validates and compiles q without touching the pool.
func (e *Executor) Prepare(q *domain.Query) (*domain.PreparedStatement, error) {
	stmt, _, err := e.prepare(q)
	if err != nil {
		if q == nil {
			return nil, err
		}
		return nil, qerr.Decorate(err, string(q.Operation), q.Model)
	}
	return stmt, nil
}

func (e *Executor) prepare(q *domain.Query) (*domain.PreparedStatement, bool, error) {
	if q == nil {
		return nil, false, qerr.Validation("query is required")
	}
	if err := q.Validate(); err != nil {
		return nil, false, err
	}
	if e.cache == nil {
		stmt, err := e.compiler.Compile(q)
		return stmt, false, err
	}

	key := cache.Key(e.dialect, q)
	if stmt, ok := e.cache.Get(key); ok {
		return stmt, true, nil
	}
	stmt, err := e.compiler.Compile(q)
	if err != nil {
		return nil, false, err
	}
	e.cache.Put(key, stmt)
	return stmt, false, nil
}

// Execute validates and compiles q, runs it on a pooled connection and
// maps the result.
func (e *Executor) Execute(ctx context.Context, q *domain.Query) (*domain.ResultSet, error) {
	start := time.Now()
	stmt, cached, err := e.prepare(q)
	if err != nil {
		return nil, e.fail(ctx, q, start, err, "")
	}
	return e.send(ctx, q, stmt, cached, start)
}

// ExecuteRaw runs a caller-built statement on a pooled connection. Only
// columns the driver reports as JSON are decoded.
func (e *Executor) ExecuteRaw(ctx context.Context, stmt *domain.PreparedStatement) (*domain.ResultSet, error) {
	start := time.Now()
	q := &domain.Query{Operation: opRaw}
	if stmt == nil {
		return nil, e.fail(ctx, q, start, qerr.Validation("statement is required"), "")
	}
	if stmt.Dialect() != e.dialect {
		return nil, e.fail(ctx, q, start,
			qerr.Validation("statement is for %s, executor runs %s", stmt.Dialect(), e.dialect), stmt.SQL())
	}
	return e.send(ctx, q, stmt, false, start)
}

// send runs stmt on a pooled connection. The connection is released exactly
// once; a transport failure or a panic marks it broken first.
func (e *Executor) send(ctx context.Context, q *domain.Query, stmt *domain.PreparedStatement, cached bool, start time.Time) (rs *domain.ResultSet, err error) {
	if e.pool == nil {
		return nil, e.fail(ctx, q, start, fmt.Errorf("executor has no connection pool"), stmt.SQL())
	}

	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, e.fail(ctx, q, start, err, stmt.SQL())
	}
	defer func() {
		if r := recover(); r != nil {
			conn.MarkBroken()
			e.pool.Release(conn)
			panic(r)
		}
		e.pool.Release(conn)
	}()

	rs, err = e.run(ctx, conn.Session(), stmt, q)
	if err != nil {
		if qerr.KindOf(err) == qerr.KindConnection {
			conn.MarkBroken()
		}
		return nil, e.fail(ctx, q, start, err, stmt.SQL())
	}
	e.succeed(ctx, q, start, rs, cached)
	return rs, nil
}

// ExecuteOn runs q on a caller-held runner such as an open transaction.
func (e *Executor) ExecuteOn(ctx context.Context, runner database.Runner, q *domain.Query) (*domain.ResultSet, error) {
	start := time.Now()
	stmt, cached, err := e.prepare(q)
	if err != nil {
		return nil, e.fail(ctx, q, start, err, "")
	}
	rs, err := e.run(ctx, runner, stmt, q)
	if err != nil {
		return nil, e.fail(ctx, q, start, err, stmt.SQL())
	}
	e.succeed(ctx, q, start, rs, cached)
	return rs, nil
}

// ExecuteInto executes q and maps the rows into dest, a pointer to a slice
// of structs.
func (e *Executor) ExecuteInto(ctx context.Context, q *domain.Query, dest any) error {
	rs, err := e.Execute(ctx, q)
	if err != nil {
		return err
	}
	return e.mapper.MapToStructSlice(rs.Rows, dest)
}

// run sends one statement on session.
func (e *Executor) run(ctx context.Context, session any, stmt *domain.PreparedStatement, q *domain.Query) (*domain.ResultSet, error) {
	if err := stmt.Consume(); err != nil {
		return nil, err
	}
	debug.Debug("executing statement",
		"model", q.Model,
		"operation", q.Operation,
		"dialect", stmt.Dialect(),
		"sql", stmt.SQL(),
		"args", len(stmt.Args()),
	)

	if stmt.Dialect() == dialect.Document {
		cr, ok := session.(database.CommandRunner)
		if !ok {
			return nil, qerr.Unsupported(string(dialect.Document), "execution without a command runner")
		}
		rows, err := cr.RunCommand(ctx, stmt.SQL())
		if err != nil {
			return nil, database.Classify(err)
		}
		return e.collect(rows, q)
	}

	runner, ok := session.(database.Runner)
	if !ok {
		return nil, fmt.Errorf("session %T cannot run SQL statements", session)
	}
	if stmt.ReturnsRows() {
		rows, err := runner.QueryContext(ctx, stmt.SQL(), stmt.Args()...)
		if err != nil {
			return nil, database.Classify(err)
		}
		return e.collect(rows, q)
	}

	res, err := runner.ExecContext(ctx, stmt.SQL(), stmt.Args()...)
	if err != nil {
		return nil, database.Classify(err)
	}
	rs := &domain.ResultSet{}
	if rs.RowsAffected, err = res.RowsAffected(); err != nil {
		return nil, database.Classify(err)
	}
	// Not every driver reports insert ids.
	if id, err := res.LastInsertId(); err == nil {
		rs.LastInsertID = id
	}
	return rs, nil
}

func (e *Executor) collect(rows *sql.Rows, q *domain.Query) (*domain.ResultSet, error) {
	defer rows.Close()
	columns, out, err := e.mapper.ScanRows(rows, q.JSONFields)
	if err != nil {
		return nil, database.Classify(err)
	}
	return &domain.ResultSet{Columns: columns, Rows: out, RowsAffected: int64(len(out))}, nil
}

func (e *Executor) succeed(ctx context.Context, q *domain.Query, start time.Time, rs *domain.ResultSet, cached bool) {
	e.telemetry.RecordQuery(ctx, telemetry.QueryInfo{
		Model:        q.Model,
		Operation:    string(q.Operation),
		Dialect:      string(e.dialect),
		Duration:     time.Since(start),
		Success:      true,
		Cached:       cached,
		RowsAffected: rs.RowsAffected,
	})
}

func (e *Executor) fail(ctx context.Context, q *domain.Query, start time.Time, err error, statement string) error {
	var model, op string
	if q != nil {
		model, op = q.Model, string(q.Operation)
	}
	err = qerr.Decorate(err, op, model)
	e.telemetry.RecordQuery(ctx, telemetry.QueryInfo{
		Model:     model,
		Operation: op,
		Dialect:   string(e.dialect),
		Duration:  time.Since(start),
	})
	e.telemetry.RecordError(ctx, telemetry.ErrorInfo{Error: err, Model: model, Operation: op, Query: statement})
	debug.Debug("query failed", "model", model, "operation", op, "error", err)
	return err
}

var _ domain.QueryExecutor = (*Executor)(nil)
