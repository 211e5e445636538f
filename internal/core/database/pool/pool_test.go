package pool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

type fakeSession struct {
	id      int64
	closed  atomic.Bool
	pingErr error
}

func (s *fakeSession) Ping(context.Context) error { return s.pingErr }

func (s *fakeSession) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeConnector struct {
	mu       sync.Mutex
	sessions []*fakeSession
	err      error
	failures int           // upcoming dials that fail
	gate     chan struct{} // when set, dials block until it is closed
}

func (f *fakeConnector) Connect(context.Context) (Session, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection refused")
	}
	s := &fakeSession{id: int64(len(f.sessions) + 1)}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func newPool(t *testing.T, capacity int, timeout time.Duration, opts ...Option) (*Pool, *fakeConnector) {
	t.Helper()
	conn := &fakeConnector{}
	p, err := New(conn, Config{Capacity: capacity, WaitTimeout: timeout}, opts...)
	require.NoError(t, err)
	return p, conn
}

func waitForWaiters(t *testing.T, p *Pool, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return p.Stats().Waiting == n }, time.Second, time.Millisecond)
}

func TestNew_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "zero capacity", config: Config{Capacity: 0}},
		{name: "negative capacity", config: Config{Capacity: -1}},
		{name: "negative timeout", config: Config{Capacity: 1, WaitTimeout: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&fakeConnector{}, tt.config)
			assert.ErrorIs(t, err, qerr.ErrValidation)
		})
	}

	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, qerr.ErrValidation)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2*runtime.NumCPU()+1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.WaitTimeout)
}

func TestAcquire_NeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	p, conn := newPool(t, capacity, 0)

	var current, peak atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			c, err := p.Acquire(ctx)
			if err != nil {
				return err
			}
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			current.Add(-1)
			p.Release(c)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, peak.Load(), int64(capacity))
	assert.LessOrEqual(t, conn.count(), capacity)
	stats := p.Stats()
	assert.LessOrEqual(t, stats.Live, capacity)
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 0, stats.Waiting)
}

func TestAcquire_GrantsInArrivalOrder(t *testing.T) {
	p, _ := newPool(t, 1, 0)
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	const waiters = 5
	order := make(chan int, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.Acquire(ctx)
			if !assert.NoError(t, err) {
				return
			}
			order <- i
			p.Release(c)
		}(i)
		waitForWaiters(t, p, i+1)
	}

	p.Release(held)
	wg.Wait()
	close(order)

	var got []int
	for i := range order {
		got = append(got, i)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestAcquire_TimeoutLeavesLiveCountUnchanged(t *testing.T) {
	p, _ := newPool(t, 1, 20*time.Millisecond)
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	require.NoError(t, err)
	before := p.Stats().Live

	start := time.Now()
	_, err = p.Acquire(ctx)
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.ErrorIs(t, err, qerr.ErrResourceExhausted)
	assert.True(t, qerr.IsRetryable(err))

	var qe *qerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 20*time.Millisecond, qe.Timeout)
	assert.Equal(t, qerr.CodePoolTimeout, qe.Code)

	stats := p.Stats()
	assert.Equal(t, before, stats.Live)
	assert.Equal(t, 0, stats.Waiting)
	assert.Equal(t, int64(1), stats.Timeouts)

	p.Release(held)
}

func TestAcquireTimeout_OverridesConfiguredTimeout(t *testing.T) {
	p, _ := newPool(t, 1, time.Hour)
	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(held)

	_, err = p.AcquireTimeout(context.Background(), 5*time.Millisecond)
	assert.ErrorIs(t, err, qerr.ErrResourceExhausted)
}

func TestRelease_HandsConnectionToOldestWaiter(t *testing.T) {
	p, conn := newPool(t, 2, time.Second)
	ctx := context.Background()

	r1, err := p.Acquire(ctx)
	require.NoError(t, err)
	r2, err := p.Acquire(ctx)
	require.NoError(t, err)

	got := make(chan *Conn, 1)
	go func() {
		c, err := p.Acquire(ctx)
		assert.NoError(t, err)
		got <- c
	}()
	waitForWaiters(t, p, 1)

	p.Release(r1)
	r3 := <-got
	assert.Same(t, r1, r3)
	assert.Equal(t, r1.ID(), r3.ID())
	assert.Equal(t, int64(2), r3.UseCount())
	assert.Equal(t, StateBusy, r3.State())
	assert.Equal(t, 2, conn.count())

	p.Release(r2)
	p.Release(r3)
	stats := p.Stats()
	assert.Equal(t, 2, stats.Idle)
	assert.Equal(t, int64(1), stats.WaitCount)
}

func TestAcquire_ReusesMostRecentlyReleased(t *testing.T) {
	p, _ := newPool(t, 2, time.Second)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(a)
	p.Release(b)

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, b, c)
	p.Release(c)
}

func TestAcquire_CancelledWhileWaiting(t *testing.T) {
	p, _ := newPool(t, 1, 0)
	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		errc <- err
	}()
	waitForWaiters(t, p, 1)
	cancel()

	err = <-errc
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, qerr.ErrConnection)
	assert.False(t, qerr.IsRetryable(err))
	stats := p.Stats()
	assert.Equal(t, 0, stats.Waiting)
	assert.Equal(t, 1, stats.Live)

	// The released connection is parked, not handed to the departed waiter.
	p.Release(held)
	assert.Equal(t, 1, p.Stats().Idle)
}

func TestAcquire_CancelledContext(t *testing.T) {
	p, conn := newPool(t, 1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, qerr.KindConnection, qerr.KindOf(err))
	assert.Equal(t, 0, conn.count())
}

func TestAcquire_DialFailureReleasesSlot(t *testing.T) {
	p, conn := newPool(t, 1, time.Second)
	conn.err = errors.New("connection refused")

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, qerr.ErrConnection)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 0, p.Stats().Live)

	conn.mu.Lock()
	conn.err = nil
	conn.mu.Unlock()
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c)
}

func TestRelease_Twice(t *testing.T) {
	p, _ := newPool(t, 1, time.Second)
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	p.Release(c)
	p.Release(c)
	stats := p.Stats()
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 1, stats.Live)
}

func TestRelease_BrokenConnectionIsReplacedForWaiter(t *testing.T) {
	p, conn := newPool(t, 1, time.Second)
	ctx := context.Background()

	broken, err := p.Acquire(ctx)
	require.NoError(t, err)

	got := make(chan *Conn, 1)
	go func() {
		c, err := p.Acquire(ctx)
		assert.NoError(t, err)
		got <- c
	}()
	waitForWaiters(t, p, 1)

	broken.MarkBroken()
	p.Release(broken)

	replacement := <-got
	require.NotNil(t, replacement)
	assert.NotEqual(t, broken.ID(), replacement.ID())
	assert.True(t, broken.Session().(*fakeSession).closed.Load())
	assert.Equal(t, StateClosed, broken.State())
	assert.Equal(t, 2, conn.count())

	stats := p.Stats()
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, int64(1), stats.Destroyed)
	p.Release(replacement)
}

func TestRelease_FailedReplacementServesWaitersInOrder(t *testing.T) {
	p, conn := newPool(t, 1, 0)
	ctx := context.Background()

	broken, err := p.Acquire(ctx)
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := p.AcquireTimeout(ctx, 300*time.Millisecond)
		first <- err
	}()
	waitForWaiters(t, p, 1)

	second := make(chan *Conn, 1)
	go func() {
		c, err := p.Acquire(ctx)
		assert.NoError(t, err)
		second <- c
	}()
	waitForWaiters(t, p, 2)

	conn.mu.Lock()
	conn.failures = 1
	conn.mu.Unlock()
	broken.MarkBroken()
	p.Release(broken)

	// The oldest waiter learns about the failed dial instead of timing out;
	// the next one gets a fresh attempt.
	select {
	case err := <-first:
		assert.ErrorIs(t, err, qerr.ErrConnection)
		assert.NotErrorIs(t, err, qerr.ErrResourceExhausted)
	case <-time.After(time.Second):
		t.Fatal("oldest waiter was not served")
	}
	c := <-second
	require.NotNil(t, c)
	assert.NotEqual(t, broken.ID(), c.ID())

	stats := p.Stats()
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 0, stats.Waiting)
	p.Release(c)
}

func TestAcquire_QueuesBehindWaiterDuringReplacement(t *testing.T) {
	p, conn := newPool(t, 1, time.Second)
	ctx := context.Background()

	broken, err := p.Acquire(ctx)
	require.NoError(t, err)

	var order []int
	var mu sync.Mutex
	var g errgroup.Group
	acquire := func(n int) {
		g.Go(func() error {
			c, err := p.Acquire(ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			p.Release(c)
			return nil
		})
	}

	acquire(1)
	waitForWaiters(t, p, 1)

	gate := make(chan struct{})
	conn.mu.Lock()
	conn.gate = gate
	conn.mu.Unlock()
	broken.MarkBroken()
	p.Release(broken)

	// The replacement dial is in flight; a late caller must not jump ahead.
	acquire(2)
	waitForWaiters(t, p, 2)
	close(gate)

	require.NoError(t, g.Wait())
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 2, conn.count())
	assert.Equal(t, 1, p.Stats().Live)
}

func TestAcquire_DialFailureHandsSlotToWaiter(t *testing.T) {
	p, conn := newPool(t, 1, time.Second)
	ctx := context.Background()

	gate := make(chan struct{})
	conn.mu.Lock()
	conn.gate = gate
	conn.failures = 1
	conn.mu.Unlock()

	dialer := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		dialer <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Live == 1 }, time.Second, time.Millisecond)

	waiter := make(chan *Conn, 1)
	go func() {
		c, err := p.Acquire(ctx)
		assert.NoError(t, err)
		waiter <- c
	}()
	waitForWaiters(t, p, 1)
	close(gate)

	assert.ErrorIs(t, <-dialer, qerr.ErrConnection)
	c := <-waiter
	require.NotNil(t, c)
	assert.Equal(t, 1, p.Stats().Live)
	p.Release(c)
}

func TestRelease_BrokenConnectionWithoutWaiters(t *testing.T) {
	p, conn := newPool(t, 1, time.Second)
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	c.MarkBroken()
	p.Release(c)

	stats := p.Stats()
	assert.Equal(t, 0, stats.Live)
	assert.Equal(t, 0, stats.Idle)
	assert.Equal(t, 1, conn.count())
}

func TestShutdown(t *testing.T) {
	p, conn := newPool(t, 1, 0)
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	waiterErr := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		waiterErr <- err
	}()
	waitForWaiters(t, p, 1)

	done := make(chan error, 1)
	go func() { done <- p.Shutdown(ctx) }()

	err = <-waiterErr
	assert.ErrorIs(t, err, qerr.ErrPoolClosed)
	assert.ErrorIs(t, err, qerr.ErrConnection)
	assert.False(t, qerr.IsRetryable(err))

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, qerr.ErrPoolClosed)

	select {
	case <-done:
		t.Fatal("shutdown returned while a connection was busy")
	case <-time.After(20 * time.Millisecond):
	}

	p.Release(held)
	require.NoError(t, <-done)
	assert.True(t, conn.sessions[0].closed.Load())
	assert.Equal(t, 0, p.Stats().Live)

	// Idempotent.
	assert.NoError(t, p.Shutdown(ctx))
}

func TestShutdown_DestroysIdleConnections(t *testing.T) {
	p, conn := newPool(t, 2, 0)
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, conn.sessions[0].closed.Load())
	assert.Equal(t, 0, p.Stats().Live)
}

func TestShutdown_ContextExpires(t *testing.T) {
	p, _ := newPool(t, 1, 0)
	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)
	p.Release(held)
}

func TestHealthCheck_DestroysFailedConnections(t *testing.T) {
	p, conn := newPool(t, 2, time.Second)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(a)
	p.Release(b)
	conn.sessions[0].pingErr = errors.New("server closed the connection")

	err = p.HealthCheck(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, qerr.ErrConnection)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 1, stats.Idle)
	assert.True(t, conn.sessions[0].closed.Load())
	assert.False(t, conn.sessions[1].closed.Load())
}

type countingObserver struct {
	waited, timedOut, created, destroyed atomic.Int64
}

func (o *countingObserver) AcquireWaited(time.Duration)   { o.waited.Add(1) }
func (o *countingObserver) AcquireTimedOut(time.Duration) { o.timedOut.Add(1) }
func (o *countingObserver) ConnectionCreated()            { o.created.Add(1) }
func (o *countingObserver) ConnectionDestroyed(string)    { o.destroyed.Add(1) }

func TestObserver(t *testing.T) {
	obs := &countingObserver{}
	p, _ := newPool(t, 1, 5*time.Millisecond, WithObserver(obs))
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	_, err = p.Acquire(ctx)
	require.Error(t, err)
	c.MarkBroken()
	p.Release(c)

	assert.Equal(t, int64(1), obs.created.Load())
	assert.Equal(t, int64(1), obs.timedOut.Load())
	assert.Equal(t, int64(1), obs.destroyed.Load())
}
