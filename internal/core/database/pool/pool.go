// Package pool provides a bounded pool of exclusive database sessions.
//
// Callers acquire a Conn, use its Session exclusively and release it. When
// every slot is busy, acquisitions queue in arrival order and a released
// connection is handed directly to the oldest waiter.
package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satishbabariya/prisma-engine-go/internal/debug"
	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// replenishTimeout bounds the background dial that replaces a broken
// connection.
const replenishTimeout = 30 * time.Second

// Session is one physical database session.
type Session interface {
	// Ping checks that the session is still usable.
	Ping(ctx context.Context) error
	// Close destroys the session.
	Close() error
}

// Connector opens new sessions.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Session, error)

// Connect calls f(ctx).
func (f ConnectorFunc) Connect(ctx context.Context) (Session, error) { return f(ctx) }

// Config holds connection pool configuration.
type Config struct {
	// Capacity is the maximum number of live connections.
	Capacity int
	// WaitTimeout bounds how long Acquire waits for a connection. Zero waits
	// until the context is done.
	WaitTimeout time.Duration
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:    2*runtime.NumCPU() + 1,
		WaitTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return qerr.Validation("pool capacity must be positive, got %d", c.Capacity)
	}
	if c.WaitTimeout < 0 {
		return qerr.Validation("pool wait timeout must not be negative, got %s", c.WaitTimeout)
	}
	return nil
}

// Observer receives pool events, typically to export metrics.
type Observer interface {
	AcquireWaited(d time.Duration)
	AcquireTimedOut(timeout time.Duration)
	ConnectionCreated()
	ConnectionDestroyed(reason string)
}

type noopObserver struct{}

func (noopObserver) AcquireWaited(time.Duration)   {}
func (noopObserver) AcquireTimedOut(time.Duration) {}
func (noopObserver) ConnectionCreated()            {}
func (noopObserver) ConnectionDestroyed(string)    {}

// Option configures a Pool.
type Option func(*Pool)

// WithObserver registers an observer for pool events.
func WithObserver(o Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.observer = o
		}
	}
}

// Stats represents pool statistics.
type Stats struct {
	Capacity     int
	Live         int
	Idle         int
	InUse        int
	Waiting      int
	WaitCount    int64
	WaitDuration time.Duration
	Timeouts     int64
	Created      int64
	Destroyed    int64
}

// grant is what a waiter receives: a connection or the reason it gets none.
type grant struct {
	conn *Conn
	err  error
}

type waiter struct {
	ch   chan grant
	elem *list.Element
}

// Pool manages a bounded set of connections.
type Pool struct {
	connector Connector
	config    Config
	observer  Observer
	nextID    atomic.Uint64

	mu      sync.Mutex
	live    int
	inUse   int
	idle    []*Conn
	waiters *list.List
	closed  bool
	drained chan struct{}

	waitCount    int64
	waitDuration time.Duration
	timeouts     int64
	created      int64
	destroyed    int64
}

// New creates a pool. No connection is opened until the first Acquire.
func New(connector Connector, config Config, opts ...Option) (*Pool, error) {
	if connector == nil {
		return nil, qerr.Validation("pool requires a connector")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{
		connector: connector,
		config:    config,
		observer:  noopObserver{},
		waiters:   list.New(),
		drained:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the pool configuration.
func (p *Pool) Config() Config {
	return p.config
}

// Acquire returns an exclusive connection, waiting at most the configured
// timeout.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	return p.AcquireTimeout(ctx, p.config.WaitTimeout)
}

// AcquireTimeout is Acquire with an explicit wait timeout. Zero waits until
// ctx is done.
func (p *Pool) AcquireTimeout(ctx context.Context, timeout time.Duration) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, qerr.Connection(err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, qerr.PoolClosed()
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.checkoutLocked(c)
		p.mu.Unlock()
		return c, nil
	}
	if p.live < p.config.Capacity && p.waiters.Len() == 0 {
		// Reserve the slot now and dial outside the lock.
		p.live++
		p.mu.Unlock()
		return p.dial(ctx)
	}

	w := &waiter{ch: make(chan grant, 1)}
	w.elem = p.waiters.PushBack(w)
	p.waitCount++
	p.mu.Unlock()

	start := time.Now()
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case g := <-w.ch:
		p.recordWait(start)
		return g.conn, g.err
	case <-expired:
		if g, granted := p.abandon(w, start); granted {
			return g.conn, g.err
		}
		p.mu.Lock()
		p.timeouts++
		p.mu.Unlock()
		p.observer.AcquireTimedOut(timeout)
		debug.Debug("connection acquisition timed out", "timeout", timeout)
		return nil, qerr.Exhausted(timeout)
	case <-ctx.Done():
		if g, granted := p.abandon(w, start); granted {
			return g.conn, g.err
		}
		return nil, qerr.Connection(ctx.Err())
	}
}

// abandon removes w from the queue. If w was granted in the meantime the
// grant wins and is returned.
func (p *Pool) abandon(w *waiter, start time.Time) (grant, bool) {
	p.mu.Lock()
	if w.elem != nil {
		p.waiters.Remove(w.elem)
		w.elem = nil
		p.mu.Unlock()
		return grant{}, false
	}
	p.mu.Unlock()
	g := <-w.ch
	p.recordWait(start)
	return g, true
}

func (p *Pool) recordWait(start time.Time) {
	d := time.Since(start)
	p.mu.Lock()
	p.waitDuration += d
	p.mu.Unlock()
	p.observer.AcquireWaited(d)
}

// dial opens a session for a slot already counted in live.
func (p *Pool) dial(ctx context.Context) (*Conn, error) {
	c, err := p.open(ctx)
	if err != nil {
		p.mu.Lock()
		again := p.freeSlotLocked()
		p.mu.Unlock()
		if again {
			go p.replenish()
		}
		return nil, qerr.Connection(fmt.Errorf("failed to open connection: %w", err))
	}

	p.mu.Lock()
	if p.closed {
		p.live--
		p.destroyed++
		p.mu.Unlock()
		p.closeSession(c, "pool closed")
		return nil, qerr.PoolClosed()
	}
	p.checkoutLocked(c)
	p.mu.Unlock()
	return c, nil
}

func (p *Pool) open(ctx context.Context) (*Conn, error) {
	session, err := p.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		id:        p.nextID.Add(1),
		session:   session,
		createdAt: time.Now(),
		pool:      p,
	}
	p.mu.Lock()
	p.created++
	p.mu.Unlock()
	p.observer.ConnectionCreated()
	debug.Debug("connection created", "conn", c.id)
	return c, nil
}

func (p *Pool) checkoutLocked(c *Conn) {
	c.state = StateBusy
	c.useCount++
	c.lastUsed = time.Now()
	p.inUse++
}

// Release returns c to the pool. A healthy connection goes to the oldest
// waiter or back to the idle set; a broken one is destroyed. Releasing a
// connection twice has no effect.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}
	if c.pool != p {
		debug.Warn("connection released to a pool that does not own it", "conn", c.id)
		return
	}

	p.mu.Lock()
	if c.state != StateBusy {
		p.mu.Unlock()
		debug.Warn("connection released more than once", "conn", c.id)
		return
	}

	if c.broken.Load() || p.closed {
		reason := "broken"
		if !c.broken.Load() {
			reason = "pool closed"
		}
		c.state = StateClosed
		p.live--
		p.inUse--
		p.destroyed++
		replenish := !p.closed && p.waiters.Len() > 0
		if replenish {
			p.live++
		}
		p.signalDrainedLocked()
		p.mu.Unlock()

		p.closeSession(c, reason)
		if replenish {
			go p.replenish()
		}
		return
	}

	p.putLocked(c)
	p.mu.Unlock()
}

// putLocked hands a busy connection to the oldest waiter or parks it.
func (p *Pool) putLocked(c *Conn) {
	if front := p.waiters.Front(); front != nil {
		w := p.waiters.Remove(front).(*waiter)
		w.elem = nil
		c.useCount++
		c.lastUsed = time.Now()
		w.ch <- grant{conn: c}
		return
	}
	c.state = StateIdle
	p.inUse--
	p.idle = append(p.idle, c)
	p.signalDrainedLocked()
}

// freeSlotLocked gives up a reserved slot. If callers are still queued the
// slot is reserved again for a replacement dial and true is returned.
func (p *Pool) freeSlotLocked() bool {
	p.live--
	if p.closed || p.waiters.Len() == 0 || p.live >= p.config.Capacity {
		return false
	}
	p.live++
	return true
}

// replenish dials a connection for the queued callers and feeds it through
// the healthy release path. The slot is already counted in live. When the
// dial fails the oldest waiter receives the error and the next one gets its
// own attempt.
func (p *Pool) replenish() {
	for {
		c, err := p.openReplacement()
		if err == nil {
			p.mu.Lock()
			if p.closed {
				p.live--
				p.destroyed++
				p.mu.Unlock()
				p.closeSession(c, "pool closed")
				return
			}
			c.state = StateBusy
			p.inUse++
			p.putLocked(c)
			p.mu.Unlock()
			return
		}

		debug.Warn("failed to open replacement connection", "error", err)
		p.mu.Lock()
		if front := p.waiters.Front(); front != nil {
			w := p.waiters.Remove(front).(*waiter)
			w.elem = nil
			w.ch <- grant{err: qerr.Connection(fmt.Errorf("failed to open connection: %w", err))}
		}
		again := p.freeSlotLocked()
		p.mu.Unlock()
		if !again {
			return
		}
	}
}

func (p *Pool) openReplacement() (*Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), replenishTimeout)
	defer cancel()
	return p.open(ctx)
}

func (p *Pool) closeSession(c *Conn, reason string) {
	if err := c.session.Close(); err != nil {
		debug.Debug("error closing connection", "conn", c.id, "error", err)
	}
	p.observer.ConnectionDestroyed(reason)
	debug.Debug("connection destroyed", "conn", c.id, "reason", reason)
}

func (p *Pool) signalDrainedLocked() {
	if !p.closed || p.inUse > 0 {
		return
	}
	select {
	case <-p.drained:
	default:
		close(p.drained)
	}
}

// Shutdown refuses new acquisitions, fails every queued waiter, waits for
// busy connections to be released and destroys idle ones. It returns early
// with ctx's error if ctx is done first. Calling it again waits again.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	var idle []*Conn
	if !p.closed {
		p.closed = true
		for e := p.waiters.Front(); e != nil; e = e.Next() {
			w := e.Value.(*waiter)
			w.elem = nil
			w.ch <- grant{err: qerr.PoolClosed()}
		}
		p.waiters.Init()

		idle = p.idle
		p.idle = nil
		p.live -= len(idle)
		p.destroyed += int64(len(idle))
		for _, c := range idle {
			c.state = StateClosed
		}
		p.signalDrainedLocked()
	}
	p.mu.Unlock()

	for _, c := range idle {
		p.closeSession(c, "pool closed")
	}

	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HealthCheck pings every idle connection and destroys those that fail.
func (p *Pool) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	for _, c := range idle {
		c.state = StateBusy
		p.inUse++
	}
	p.mu.Unlock()

	var errs []error
	for _, c := range idle {
		if err := c.session.Ping(ctx); err != nil {
			c.MarkBroken()
			errs = append(errs, fmt.Errorf("connection %d: %w", c.id, err))
		}
		// Checked connections rejoin through Release so waiters are served.
		p.Release(c)
	}
	if len(errs) > 0 {
		return qerr.Connection(fmt.Errorf("health check failed: %w", errors.Join(errs...)))
	}
	return nil
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity:     p.config.Capacity,
		Live:         p.live,
		Idle:         len(p.idle),
		InUse:        p.inUse,
		Waiting:      p.waiters.Len(),
		WaitCount:    p.waitCount,
		WaitDuration: p.waitDuration,
		Timeouts:     p.timeouts,
		Created:      p.created,
		Destroyed:    p.destroyed,
	}
}
