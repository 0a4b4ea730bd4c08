/*
 * Copyright 2024 ScopeDB, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package quarry

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scopedb/quarry-go/internal/engine"
	"github.com/scopedb/quarry-go/internal/pool"
	"github.com/scopedb/quarry-go/internal/rpc"
	"github.com/scopedb/quarry-go/internal/session"
	"github.com/scopedb/quarry-go/internal/strategy"
)

// Connection is a database-client-style handle to one engine deployment
// (or pair of blue/green deployments): a bounded pool of authenticated RPC
// channels plus the coordinator that tracks which deployment is live.
type Connection struct {
	cfg   *Config
	pool  *pool.Pool
	coord *strategy.Coordinator
}

// Open validates config and returns a ready Connection. It does no network
// I/O: pool channels are created on first use, and deployment-tag discovery
// runs on the first RPC that needs a tag.
func Open(cfg *Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	factory := func() (*session.Session, error) {
		return session.Dial(cfg.Endpoint, cfg.User, cfg.Password, cfg.Channel)
	}

	conn := &Connection{cfg: cfg, pool: pool.New(cfg.Pool, factory)}
	conn.coord = strategy.New(conn.discover, cfg.StrategyCacheTimeout)
	return conn, nil
}

// discover performs one authenticate attempt under the given tag. It
// dials its own throwaway session rather than acquiring one from the pool:
// discovery runs from inside the invoker's tag resolution, which happens
// while the caller's own pool channel is already checked out, so drawing a
// second channel from the same pool would deadlock a pool sized to exactly
// one channel. It is the Coordinator's DiscoverFunc.
func (c *Connection) discover(tag strategy.Tag) (wrongTag bool, err error) {
	ctx := context.Background()
	s, err := session.Dial(c.cfg.Endpoint, c.cfg.User, c.cfg.Password, c.cfg.Channel)
	if err != nil {
		return false, err
	}
	defer func() { _ = s.Close() }()

	callCtx := rpc.AttachTag(ctx, tag)
	_, err = s.Client().Authenticate(callCtx, &engine.AuthenticateRequest{
		User:     c.cfg.User,
		Password: c.cfg.Password,
	})
	if err != nil {
		return rpc.IsWrongTag(err), err
	}
	return false, nil
}

// Close drains the connection pool. Safe to call once; subsequent calls are
// no-ops beyond re-closing an already-empty pool.
func (c *Connection) Close() error {
	c.pool.Close()
	return nil
}

// Stats returns the underlying pool's read-only statistics.
func (c *Connection) Stats() pool.Stats { return c.pool.Stats() }

// Statement builds a new statement bound to this connection.
func (c *Connection) Statement(query string) *Statement {
	return &Statement{conn: c, query: query}
}

type callerKeyCtx struct{}

// WithCallerKey binds an explicit pool affinity key to ctx. Callers that
// want the pool's per-caller affinity to actually hold across a sequence of
// operations (e.g. one goroutine per logical request) should mint a key
// once with pool.NewCallerKey-equivalent NewCallerKey and thread it through
// every call sharing that ctx.
func WithCallerKey(ctx context.Context, key CallerKey) context.Context {
	return context.WithValue(ctx, callerKeyCtx{}, key)
}

// CallerKey is the opaque pool affinity key (spec §4.4's "thread id for
// thread-per-request runtimes; a task-local token for cooperative
// runtimes").
type CallerKey = pool.CallerKey

// NewCallerKey mints a fresh affinity key.
func NewCallerKey() CallerKey { return pool.NewCallerKey() }

func callerKeyFromContext(ctx context.Context) CallerKey {
	if v, ok := ctx.Value(callerKeyCtx{}).(CallerKey); ok {
		return v
	}
	return pool.NewCallerKey()
}

// withInvoker acquires a pool channel, builds an invoker bound to its
// session, runs fn, and releases the channel regardless of outcome. Every
// façade method funnels its RPCs through here, so this is also the one place
// an internal error is translated into the public taxonomy of errors.go.
func (c *Connection) withInvoker(ctx context.Context, fn func(inv *rpc.Invoker) error) error {
	ch, err := c.pool.Acquire(ctx, callerKeyFromContext(ctx))
	if err != nil {
		return translateError(err)
	}
	defer c.pool.Release(ch)

	inv := rpc.New(ch.Session, c.coord, c.cfg.MaxRetryAttempts, c.cfg.RetryBackoff, c.cfg.ClusterUUID)
	return translateError(fn(inv))
}

// translateError converts an internal/rpc classified error, or a raw
// transport-level failure, into the exported taxonomy in errors.go. An error
// already expressed as one of the exported types (DecodeError is constructed
// directly by the façade; PoolExhaustedError/PoolClosedError are aliases of
// their internal/pool counterparts) passes through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *rpc.AuthDeniedError:
		return &AuthDeniedError{Message: e.Message}
	case *rpc.WrongTagError:
		return &WrongTagError{Message: e.Message}
	case *DecodeError, *pool.PoolExhaustedError, *pool.PoolClosedError, *ConfigError:
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransportError{Message: err.Error(), Cause: err}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
			return &TransportError{Message: err.Error(), Cause: err}
		}
	}
	return err
}
