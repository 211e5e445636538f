// Package transaction runs groups of queries atomically on one pooled
// connection.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/satishbabariya/prisma-engine-go/internal/adapters/database"
	"github.com/satishbabariya/prisma-engine-go/internal/core/database/pool"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
	"github.com/satishbabariya/prisma-engine-go/internal/core/query/executor"
	"github.com/satishbabariya/prisma-engine-go/internal/debug"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// ErrTxDone is returned when using a transaction that has already been
// committed or rolled back.
var ErrTxDone = errors.New("transaction has already been committed or rolled back")

// State is the lifecycle state of a transaction.
type State int

const (
	StateActive State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled back"
	}
	return "unknown"
}

// StepError reports the first failing operation of a batch. Later
// operations were not attempted and nothing was committed.
type StepError struct {
	Index int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("transaction step %d failed: %v", e.Index, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Coordinator begins transactions on connections from the executor's pool.
type Coordinator struct {
	exec *executor.Executor
}

// New creates a coordinator. The executor must have a pool.
func New(exec *executor.Executor) (*Coordinator, error) {
	if exec == nil || exec.Pool() == nil {
		return nil, qerr.Validation("transaction coordinator requires an executor with a connection pool")
	}
	return &Coordinator{exec: exec}, nil
}

// Run executes ops in order inside one transaction. Every operation is
// validated and compiled before a connection is acquired. The first failure
// rolls everything back and is returned as a *StepError.
func (c *Coordinator) Run(ctx context.Context, ops []*domain.Query, opts *Options) ([]*domain.ResultSet, error) {
	for i, op := range ops {
		if _, err := c.exec.Prepare(op); err != nil {
			return nil, &StepError{Index: i, Err: err}
		}
	}

	tx, err := c.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.ResultSet, 0, len(ops))
	for i, op := range ops {
		rs, err := tx.Execute(ctx, op)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				debug.Warn("rollback failed", "tx", tx.ID(), "error", rbErr)
			}
			return nil, &StepError{Index: i, Err: err}
		}
		results = append(results, rs)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

// Interactive runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. A panic in fn rolls back, discards
// the connection and re-panics.
func (c *Coordinator) Interactive(ctx context.Context, opts *Options, fn func(tx *Tx) error) (err error) {
	tx, err := c.Begin(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.abort()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, ErrTxDone) {
			debug.Warn("rollback failed", "tx", tx.ID(), "error", rbErr)
		}
		return err
	}
	if tx.State() != StateActive {
		// fn finished the transaction itself.
		return nil
	}
	return tx.Commit()
}

// Begin acquires a connection and starts a transaction on it. The caller
// must finish the transaction with Commit or Rollback, which release the
// connection.
func (c *Coordinator) Begin(ctx context.Context, opts *Options) (*Tx, error) {
	p := c.exec.Pool()
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	starter, ok := conn.Session().(database.TxStarter)
	if !ok {
		p.Release(conn)
		return nil, qerr.Unsupported(string(c.exec.Dialect()), "transactions")
	}
	sqlTx, err := starter.BeginTx(ctx, opts.txOptions())
	if err != nil {
		err = database.Classify(err)
		if qerr.KindOf(err) == qerr.KindConnection {
			conn.MarkBroken()
		}
		p.Release(conn)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{
		id:    uuid.NewString(),
		pool:  p,
		conn:  conn,
		sqlTx: sqlTx,
		exec:  c.exec,
	}
	level := IsolationLevelDefault
	if opts != nil {
		level = opts.IsolationLevel
	}
	debug.Debug("transaction started", "tx", tx.id, "conn", conn.ID(), "isolation", level)
	return tx, nil
}

// Tx is an open transaction holding one pooled connection exclusively.
type Tx struct {
	id    string
	pool  *pool.Pool
	conn  *pool.Conn
	sqlTx *sql.Tx
	exec  *executor.Executor

	mu      sync.Mutex
	state   State
	faulted bool
}

// ID returns the transaction id used in logs.
func (t *Tx) ID() string { return t.id }

// State returns the lifecycle state.
func (t *Tx) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Execute runs q inside the transaction.
func (t *Tx) Execute(ctx context.Context, q *domain.Query) (*domain.ResultSet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return nil, ErrTxDone
	}
	rs, err := t.exec.ExecuteOn(ctx, t.sqlTx, q)
	if err != nil && qerr.KindOf(err) == qerr.KindConnection {
		t.faulted = true
	}
	return rs, err
}

// Commit commits the transaction and releases its connection.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return ErrTxDone
	}

	err := t.sqlTx.Commit()
	if err != nil {
		// A failed commit leaves nothing applied.
		t.state = StateRolledBack
		err = database.Classify(err)
		if qerr.KindOf(err) == qerr.KindConnection {
			t.faulted = true
		} else {
			err = qerr.Query(qerr.CodeTransactionFailed, err)
		}
		t.releaseLocked()
		return qerr.Decorate(err, "commit", "")
	}
	t.state = StateCommitted
	t.releaseLocked()
	debug.Debug("transaction committed", "tx", t.id)
	return nil
}

// Rollback aborts the transaction and releases its connection.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return ErrTxDone
	}

	t.state = StateRolledBack
	err := t.sqlTx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		err = database.Classify(err)
		t.faulted = t.faulted || qerr.KindOf(err) == qerr.KindConnection
	} else {
		err = nil
	}
	t.releaseLocked()
	debug.Debug("transaction rolled back", "tx", t.id)
	return err
}

// abort rolls back and discards the connection.
func (t *Tx) abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return
	}
	t.state = StateRolledBack
	t.sqlTx.Rollback() //nolint:errcheck
	t.faulted = true
	t.releaseLocked()
}

func (t *Tx) releaseLocked() {
	if t.faulted {
		t.conn.MarkBroken()
	}
	t.pool.Release(t.conn)
}
