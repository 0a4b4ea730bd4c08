// Package pool implements a bounded, thread-affine pool of session-backed
// RPC channels (spec §4.4).
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scopedb/quarry-go/internal/session"
)

// CallerKey is the opaque caller identity affinity is keyed by. Go has no
// stable equivalent of a native thread id, so unlike a runtime that can
// read one off the OS thread, callers mint or supply their own key (see
// NewCallerKey).
type CallerKey string

// NewCallerKey mints a fresh caller key. A cooperative-scheduling caller
// (e.g. one goroutine per logical request) typically calls this once per
// request and threads the result through its context.
func NewCallerKey() CallerKey {
	return CallerKey(uuid.NewString())
}

// Factory creates a new session-backed channel on demand.
type Factory func() (*session.Session, error)

// Channel is one pooled RPC channel.
type Channel struct {
	Session   *session.Session
	createdAt time.Time
	lastUsed  time.Time
	inUse     bool
	ephemeral bool
}

// Stats is the pool's read-only statistics surface (spec §4.4).
type Stats struct {
	Active          int
	Idle            int
	TotalCreated    int
	FailedCreations int
	WaitersNow      int
	TotalAcquires   int
}

type waiter struct {
	ch chan *Channel
}

// Pool is a bounded pool of session-backed channels with per-caller
// affinity, health checks, age-based recycling, and overflow.
type Pool struct {
	mu      sync.Mutex
	cfg     Config
	factory Factory

	resident []*Channel
	pending  int // resident creations reserved but not yet appended
	overflow int // count of currently-checked-out ephemeral channels
	affinity map[CallerKey]*Channel
	waiters  []*waiter
	closed   bool

	stats Stats
}

// New constructs a Pool without doing any network I/O. Resident channels
// are created one at a time by Acquire, only when no idle one can be
// reused; the pool does not pre-create or keep Min channels warm. Min is
// used only by Release, to decide whether a destroyed resident channel is
// replaced.
func New(cfg Config, factory Factory) *Pool {
	return &Pool{
		cfg:      cfg.Normalized(),
		factory:  factory,
		affinity: make(map[CallerKey]*Channel),
	}
}

// Acquire runs the five-step algorithm of spec §4.4 in order: affinity
// reuse, idle reuse, create-under-max, create-under-overflow, and finally
// block on a FIFO waiter queue until acquireTimeout.
func (p *Pool) Acquire(ctx context.Context, caller CallerKey) (*Channel, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, &PoolClosedError{}
	}
	p.stats.TotalAcquires++
	p.mu.Unlock()

	// Steps 1-2: affinity, then idle reuse (most-recently-used first). If
	// prePing is on, the candidate is validated with a live RPC before it's
	// handed out; one that fails the check is destroyed and the search
	// retries instead of returning a channel that's actually dead.
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, &PoolClosedError{}
		}

		ch, ok := p.affinity[caller]
		if !ok || ch.inUse || !p.healthyLocked(ch) {
			ch = p.pickIdleLocked()
		}
		if ch == nil {
			p.mu.Unlock()
			break
		}

		ch.inUse = true
		ch.lastUsed = time.Now()
		p.affinity[caller] = ch
		p.mu.Unlock()

		if p.prePing(ctx, ch) {
			return ch, nil
		}

		p.mu.Lock()
		ch.inUse = false
		p.removeResidentLocked(ch)
		if p.affinity[caller] == ch {
			delete(p.affinity, caller)
		}
		p.mu.Unlock()
		_ = ch.Session.Close()
	}

	p.mu.Lock()
	// Step 3: create under max. pending reserves the slot under the lock
	// before it's released across the blocking factory() call, the same way
	// step 4 reserves overflow, so two concurrent acquirers can't both pass
	// the len(resident) < Max check and both append.
	if len(p.resident)+p.pending < p.cfg.Max {
		p.pending++
		p.mu.Unlock()
		ch, err := p.createLocked(false)
		p.mu.Lock()
		p.pending--
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		ch.inUse = true
		p.resident = append(p.resident, ch)
		p.affinity[caller] = ch
		p.mu.Unlock()
		return ch, nil
	}

	// Step 4: overflow.
	if p.overflow < p.cfg.Overflow {
		p.overflow++
		p.mu.Unlock()
		ch, err := p.createLocked(true)
		if err != nil {
			p.mu.Lock()
			p.overflow--
			p.mu.Unlock()
			return nil, err
		}
		ch.inUse = true
		return ch, nil
	}

	// Step 5: block on the FIFO waiter queue.
	w := &waiter{ch: make(chan *Channel, 1)}
	p.waiters = append(p.waiters, w)
	p.stats.WaitersNow = len(p.waiters)
	p.mu.Unlock()

	timeout := p.cfg.AcquireTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch, ok := <-w.ch:
		if !ok {
			return nil, &PoolClosedError{}
		}
		p.mu.Lock()
		p.affinity[caller] = ch
		p.mu.Unlock()
		return ch, nil
	case <-timer.C:
		p.removeWaiterLocked(w)
		return nil, &PoolExhaustedError{Waited: timeout.String()}
	case <-ctx.Done():
		p.removeWaiterLocked(w)
		return nil, ctx.Err()
	}
}

func (p *Pool) removeWaiterLocked(w *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, x := range p.waiters {
		if x == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	p.stats.WaitersNow = len(p.waiters)
}

// pickIdleLocked returns the most-recently-used healthy idle resident
// channel. Unhealthy idle channels are skipped and left in the resident
// list. Must be called with p.mu held.
func (p *Pool) pickIdleLocked() *Channel {
	var best *Channel
	for _, ch := range p.resident {
		if ch.inUse {
			continue
		}
		if !p.healthyLocked(ch) {
			continue
		}
		if best == nil || ch.lastUsed.After(best.lastUsed) {
			best = ch
		}
	}
	return best
}

// healthyLocked checks the local, no-I/O invariants: transport state and
// age. It says nothing about prePing, which is a live RPC and must not run
// with p.mu held; see prePing.
func (p *Pool) healthyLocked(ch *Channel) bool {
	return ch.Session.Healthy(ch.createdAt, p.cfg.RecycleAge)
}

// prePing runs the configured liveness check on a candidate channel before
// it's handed to a caller. It must be called without p.mu held. When
// PrePing is off this is a no-op that always succeeds.
func (p *Pool) prePing(ctx context.Context, ch *Channel) bool {
	if !p.cfg.PrePing {
		return true
	}
	return ch.Session.Ping(ctx) == nil
}

func (p *Pool) createLocked(ephemeral bool) (*Channel, error) {
	s, err := p.factory()
	if err != nil {
		p.mu.Lock()
		p.stats.FailedCreations++
		p.mu.Unlock()
		return nil, err
	}
	now := time.Now()
	p.mu.Lock()
	p.stats.TotalCreated++
	p.mu.Unlock()
	return &Channel{Session: s, createdAt: now, lastUsed: now, ephemeral: ephemeral}, nil
}

// Release returns a channel to the pool per the three-step algorithm of
// spec §4.4: ephemeral channels are destroyed immediately, unhealthy or
// over-age channels are destroyed (and optionally replaced to maintain
// Min), and everything else goes idle and wakes one waiter.
func (p *Pool) Release(ch *Channel) {
	p.mu.Lock()

	if ch.ephemeral {
		p.overflow--
		p.mu.Unlock()
		_ = ch.Session.Close()
		return
	}

	if p.closed || !p.healthyLocked(ch) {
		p.removeResidentLocked(ch)
		needReplacement := !p.closed && len(p.resident) < p.cfg.Min
		p.mu.Unlock()
		_ = ch.Session.Close()
		if needReplacement {
			if repl, err := p.createLocked(false); err == nil {
				p.mu.Lock()
				p.resident = append(p.resident, repl)
				p.mu.Unlock()
			}
		}
		return
	}

	ch.inUse = false
	ch.lastUsed = time.Now()

	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.stats.WaitersNow = len(p.waiters)
		ch.inUse = true
		p.mu.Unlock()
		w.ch <- ch
		return
	}
	p.mu.Unlock()
}

func (p *Pool) removeResidentLocked(ch *Channel) {
	for i, x := range p.resident {
		if x == ch {
			p.resident = append(p.resident[:i], p.resident[i+1:]...)
			return
		}
	}
}

// Close drains every resident channel and fails every waiter with
// PoolClosedError.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	residents := p.resident
	p.resident = nil
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		close(w.ch)
	}
	for _, ch := range residents {
		_ = ch.Session.Close()
	}
}

// Stats returns a snapshot of the pool's statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	active := 0
	idle := 0
	for _, ch := range p.resident {
		if ch.inUse {
			active++
		} else {
			idle++
		}
	}
	s := p.stats
	s.Active = active
	s.Idle = idle
	s.WaitersNow = len(p.waiters)
	return s
}
