package strategy

import (
	"sync"
	"time"
)

// DiscoverFunc performs one authenticate attempt under the given tag. It
// returns the distinguished wrong-tag condition via wrongTag=true rather
// than a typed error, since the coordinator itself must stay transport-
// agnostic; the caller (the RPC invoker) is the component that knows how
// to recognize a wrong-tag response.
type DiscoverFunc func(t Tag) (wrongTag bool, err error)

// Coordinator is the single source of truth for which deployment tag each
// outbound RPC should carry and when to switch. It is safe for concurrent
// use, and is intentionally constructible more than once so tests can run
// isolated coordinators instead of sharing process-global state.
type Coordinator struct {
	mu        sync.Mutex
	active    Tag
	pending   Tag
	queryTags map[string]Tag
	discover  DiscoverFunc

	// cacheTimeout and discoveredAt implement rediscovery TTL: once active
	// has stood for cacheTimeout, the next tag lookup treats it as unset
	// and rediscovers instead of trusting a possibly-stale deployment.
	// cacheTimeout <= 0 disables time-based invalidation; only an explicit
	// wrong-tag error invalidates then.
	cacheTimeout time.Duration
	discoveredAt time.Time
}

// New creates a Coordinator that uses discover to perform strategy
// discovery. discover may be nil if the caller never intends to exercise
// discovery (e.g. a test that pre-seeds the active tag). cacheTimeout
// bounds how long a discovered tag is trusted before rediscovery; <= 0
// disables the TTL.
func New(discover DiscoverFunc, cacheTimeout time.Duration) *Coordinator {
	return &Coordinator{
		queryTags:    make(map[string]Tag),
		discover:     discover,
		cacheTimeout: cacheTimeout,
	}
}

var (
	defaultOnce sync.Once
	defaultC    *Coordinator
)

// Default returns the process-global coordinator, constructing it on first
// use. Library code that wants test isolation should call New directly
// instead of reaching for Default.
func Default(discover DiscoverFunc, cacheTimeout time.Duration) *Coordinator {
	defaultOnce.Do(func() {
		defaultC = New(discover, cacheTimeout)
	})
	return defaultC
}

// expireIfStaleLocked drops a cached active/pending pair once cacheTimeout
// has elapsed since the tag was discovered, forcing the next lookup to
// rediscover. Must be called with c.mu held.
func (c *Coordinator) expireIfStaleLocked() {
	if c.cacheTimeout <= 0 || c.active == Unset {
		return
	}
	if time.Since(c.discoveredAt) >= c.cacheTimeout {
		c.active = Unset
		c.pending = Unset
	}
}

// TagForNewQuery returns the tag a not-yet-registered query should use:
// pending if set, else active, else the result of discovery.
func (c *Coordinator) TagForNewQuery() (Tag, error) {
	c.mu.Lock()
	c.expireIfStaleLocked()
	if c.pending != Unset {
		t := c.pending
		c.mu.Unlock()
		return t, nil
	}
	if c.active != Unset {
		t := c.active
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()
	return c.discoverLocked()
}

// discoverLocked performs strategy discovery without holding the mutex
// across the (blocking) RPC calls, but re-checks active under the lock
// before publishing so concurrent racers converge on one result.
func (c *Coordinator) discoverLocked() (Tag, error) {
	c.mu.Lock()
	c.expireIfStaleLocked()
	if c.active != Unset {
		t := c.active
		c.mu.Unlock()
		return t, nil
	}
	discover := c.discover
	c.mu.Unlock()

	if discover == nil {
		return Unset, nil
	}

	var lastErr error
	for _, candidate := range []Tag{Blue, Green} {
		wrongTag, err := discover(candidate)
		if err == nil {
			c.mu.Lock()
			if c.active == Unset {
				c.active = candidate
				c.discoveredAt = time.Now()
			}
			winner := c.active
			c.mu.Unlock()
			return winner, nil
		}
		if !wrongTag {
			return Unset, err
		}
		lastErr = err
	}
	return Unset, lastErr
}

// TagForExistingQuery returns the tag registered for queryID, or active if
// none is registered. Callers must use this (never TagForNewQuery) once a
// queryID exists.
func (c *Coordinator) TagForExistingQuery(queryID string) Tag {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireIfStaleLocked()
	if t, ok := c.queryTags[queryID]; ok {
		return t
	}
	return c.active
}

// RegisterQuery records the tag a query was prepared under.
func (c *Coordinator) RegisterQuery(queryID string, t Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queryTags[queryID] = t
}

// ForgetQuery removes a query's tag registration. Must be called on
// clear/cancel to bound queryTags by the set of in-flight queries.
func (c *Coordinator) ForgetQuery(queryID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.queryTags, queryID)
}

// ObserveResponseHint records a "next-tag" hint from a response. The hint
// only takes effect as pending; it never touches active directly.
func (c *Coordinator) ObserveResponseHint(hint Tag) {
	if hint == Unset {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if hint != c.active {
		c.pending = hint
	}
}

// ApplyPendingAtSafePoint promotes pending to active. Must be invoked after
// every clear/cancel, whether or not a hint was ever observed.
func (c *Coordinator) ApplyPendingAtSafePoint() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != Unset {
		c.active = c.pending
		c.pending = Unset
		c.discoveredAt = time.Now()
	}
}

// Invalidate clears active and pending, forcing rediscovery on the next
// TagForNewQuery call. Invoked by the RPC invoker on a wrong-tag error.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = Unset
	c.pending = Unset
	c.discoveredAt = time.Time{}
}

// Snapshot returns the current (active, pending) pair, for tests and
// diagnostics.
func (c *Coordinator) Snapshot() (active, pending Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.pending
}
