package pool_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scopedb/quarry-go/internal/engine"
	"github.com/scopedb/quarry-go/internal/pool"
	"github.com/scopedb/quarry-go/internal/session"
)

type stubAuthenticator struct{ id string }

func (s *stubAuthenticator) Authenticate(context.Context, *engine.AuthenticateRequest) (*engine.AuthenticateResponse, error) {
	return &engine.AuthenticateResponse{SessionID: s.id}, nil
}

func newFactory() (pool.Factory, *int32) {
	var created int32
	f := func() (*session.Session, error) {
		n := atomic.AddInt32(&created, 1)
		return session.NewWithClient(fmt.Sprintf("engine:%d", n), "u", "p", nil, &stubAuthenticator{id: "s"}), nil
	}
	return f, &created
}

func TestAcquire_ThreadAffinityReusesSameChannel(t *testing.T) {
	factory, _ := newFactory()
	p := pool.New(pool.Config{Min: 2, Max: 4}, factory)
	caller := pool.NewCallerKey()

	ch1, err := p.Acquire(context.Background(), caller)
	require.NoError(t, err)
	p.Release(ch1)

	ch2, err := p.Acquire(context.Background(), caller)
	require.NoError(t, err)
	require.Same(t, ch1, ch2, "same caller reacquiring after release must get the same channel")
}

func TestAcquire_ConcurrentCallersGetDistinctChannels(t *testing.T) {
	factory, _ := newFactory()
	p := pool.New(pool.Config{Min: 2, Max: 4}, factory)

	callerA := pool.NewCallerKey()
	callerB := pool.NewCallerKey()

	chA, err := p.Acquire(context.Background(), callerA)
	require.NoError(t, err)
	chB, err := p.Acquire(context.Background(), callerB)
	require.NoError(t, err)

	require.NotSame(t, chA, chB, "distinct concurrent callers must not share a checked-out channel")
}

func TestAcquire_CreatesUpToMaxThenOverflows(t *testing.T) {
	factory, created := newFactory()
	p := pool.New(pool.Config{Min: 0, Max: 2, Overflow: 1, AcquireTimeout: 50 * time.Millisecond}, factory)

	c1, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.NoError(t, err)
	c2, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(created))

	// third acquire exceeds max but overflow budget (1) covers it.
	c3, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.NoError(t, err)
	require.Equal(t, int32(3), atomic.LoadInt32(created))

	// fourth acquire exceeds both max and overflow: blocks until timeout.
	_, err = p.Acquire(context.Background(), pool.NewCallerKey())
	require.Error(t, err)
	require.IsType(t, &pool.PoolExhaustedError{}, err)

	p.Release(c1)
	p.Release(c2)
	p.Release(c3)
}

func TestAcquire_ConcurrentBurstNeverExceedsMax(t *testing.T) {
	factory, created := newFactory()
	const max = 16
	p := pool.New(pool.Config{Min: 0, Max: max, Overflow: 0, AcquireTimeout: time.Second}, factory)

	channels := make([]*pool.Channel, max)
	var wg sync.WaitGroup
	wg.Add(max)
	for i := 0; i < max; i++ {
		go func(i int) {
			defer wg.Done()
			ch, err := p.Acquire(context.Background(), pool.NewCallerKey())
			require.NoError(t, err)
			channels[i] = ch
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(max), atomic.LoadInt32(created), "step 3's reservation must let exactly Max channels through a concurrent burst, not more")

	stats := p.Stats()
	require.Equal(t, max, stats.Active, "resident active count must not exceed Max under a concurrent burst")

	for _, ch := range channels {
		p.Release(ch)
	}
}

func TestAcquire_WaiterUnblockedByRelease(t *testing.T) {
	factory, _ := newFactory()
	p := pool.New(pool.Config{Min: 0, Max: 1, Overflow: 0, AcquireTimeout: time.Second}, factory)

	held, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var waiterErr error
	var waiterCh *pool.Channel
	go func() {
		defer wg.Done()
		waiterCh, waiterErr = p.Acquire(context.Background(), pool.NewCallerKey())
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(held)
	wg.Wait()

	require.NoError(t, waiterErr)
	require.Same(t, held, waiterCh, "the sole channel must be handed directly to the waiter on release")
}

func TestAcquire_TimesOutWithPoolExhausted(t *testing.T) {
	factory, _ := newFactory()
	p := pool.New(pool.Config{Min: 0, Max: 1, AcquireTimeout: 10 * time.Millisecond}, factory)

	held, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.NoError(t, err)
	defer p.Release(held)

	start := time.Now()
	_, err = p.Acquire(context.Background(), pool.NewCallerKey())
	require.Error(t, err)
	require.IsType(t, &pool.PoolExhaustedError{}, err)
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestClose_FailsWaitersWithPoolClosed(t *testing.T) {
	factory, _ := newFactory()
	p := pool.New(pool.Config{Min: 0, Max: 1, AcquireTimeout: time.Second}, factory)

	held, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.NoError(t, err)
	_ = held

	var wg sync.WaitGroup
	wg.Add(1)
	var waiterErr error
	go func() {
		defer wg.Done()
		_, waiterErr = p.Acquire(context.Background(), pool.NewCallerKey())
	}()

	time.Sleep(20 * time.Millisecond)
	p.Close()
	wg.Wait()

	require.Error(t, waiterErr)
	require.IsType(t, &pool.PoolClosedError{}, waiterErr)
}

func TestAcquireAfterClose_ReturnsPoolClosed(t *testing.T) {
	factory, _ := newFactory()
	p := pool.New(pool.Config{Max: 1}, factory)
	p.Close()

	_, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.Error(t, err)
	require.IsType(t, &pool.PoolClosedError{}, err)
}

func TestRelease_EphemeralChannelIsNotReused(t *testing.T) {
	factory, created := newFactory()
	p := pool.New(pool.Config{Min: 0, Max: 1, Overflow: 1}, factory)

	resident, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.NoError(t, err)
	overflow, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(created))

	p.Release(overflow)
	p.Release(resident)

	stats := p.Stats()
	require.Equal(t, 0, stats.Active)
	require.Equal(t, 1, stats.Idle, "only the resident channel should remain, the overflow one is destroyed")
}

func TestStats_ReflectsActiveAndIdle(t *testing.T) {
	factory, _ := newFactory()
	p := pool.New(pool.Config{Min: 0, Max: 4}, factory)

	c1, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.NoError(t, err)
	c2, err := p.Acquire(context.Background(), pool.NewCallerKey())
	require.NoError(t, err)

	stats := p.Stats()
	require.Equal(t, 2, stats.Active)
	require.Equal(t, 0, stats.Idle)

	p.Release(c1)
	stats = p.Stats()
	require.Equal(t, 1, stats.Active)
	require.Equal(t, 1, stats.Idle)

	p.Release(c2)
}
