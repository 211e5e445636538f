package pool

import (
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a connection.
type State int

const (
	StateIdle State = iota
	StateBusy
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is an exclusive handle to one pooled session. It must be released
// exactly once.
type Conn struct {
	id        uint64
	session   Session
	createdAt time.Time
	pool      *Pool
	broken    atomic.Bool

	// guarded by pool.mu
	state    State
	useCount int64
	lastUsed time.Time
}

// ID returns the connection's pool-unique id.
func (c *Conn) ID() uint64 { return c.id }

// Session returns the underlying session.
func (c *Conn) Session() Session { return c.session }

// CreatedAt returns when the session was opened.
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// MarkBroken flags the session as unusable. It is destroyed on release
// instead of being reused.
func (c *Conn) MarkBroken() { c.broken.Store(true) }

// Broken reports whether MarkBroken was called.
func (c *Conn) Broken() bool { return c.broken.Load() }

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	return c.state
}

// UseCount returns how many times the connection has been handed out.
func (c *Conn) UseCount() int64 {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	return c.useCount
}
