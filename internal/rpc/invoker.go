// Package rpc wraps outbound engine calls with the deployment-tag header,
// bounded retry on auth-denied and wrong-tag errors, and response hint
// propagation back to the coordinator.
package rpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/scopedb/quarry-go/internal/engine"
	"github.com/scopedb/quarry-go/internal/session"
	"github.com/scopedb/quarry-go/internal/strategy"
)

// AuthDeniedError is the classified form of the engine's "Access denied"
// condition.
type AuthDeniedError struct{ Message string }

func (e *AuthDeniedError) Error() string { return "rpc: auth denied: " + e.Message }

// WrongTagError is the classified form of the engine's "456"/"status: 456"
// condition.
type WrongTagError struct{ Message string }

func (e *WrongTagError) Error() string { return "rpc: wrong deployment tag: " + e.Message }

func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if st, ok := status.FromError(err); ok {
		var b strings.Builder
		b.WriteString(st.Message())
		for _, d := range st.Details() {
			fmt.Fprintf(&b, " %v", d)
		}
		msg = b.String()
	}
	switch {
	case strings.Contains(msg, "Access denied"):
		return &AuthDeniedError{Message: msg}
	case strings.Contains(msg, "456"):
		return &WrongTagError{Message: msg}
	default:
		return err
	}
}

// Invoker attaches headers, retries auth-denied/wrong-tag errors, and feeds
// response hints to the Coordinator.
type Invoker struct {
	Session     *session.Session
	Coordinator *strategy.Coordinator
	MaxAttempts int
	Backoff     time.Duration
	ClusterUUID string
}

// New builds an Invoker with sane defaults filled in for a non-positive
// MaxAttempts/Backoff.
func New(sess *session.Session, coord *strategy.Coordinator, maxAttempts int, backoff time.Duration, clusterUUID string) *Invoker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &Invoker{
		Session:     sess,
		Coordinator: coord,
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
		ClusterUUID: clusterUUID,
	}
}

// IsWrongTag reports whether err is the distinguished wrong-tag condition.
// Exposed for the coordinator's discovery path, which needs to distinguish
// "try the other tag" from "abort discovery" without going through Invoke.
func IsWrongTag(err error) bool {
	_, ok := classify(err).(*WrongTagError)
	return ok
}

// AttachTag stamps ctx with the strategy header for a single ad hoc call
// (used by discovery, which runs outside the retry loop's own header
// attachment).
func AttachTag(ctx context.Context, tag strategy.Tag) context.Context {
	return attachHeaders(ctx, tag, "", "")
}

func attachHeaders(ctx context.Context, tag strategy.Tag, plannerIP, clusterUUID string) context.Context {
	pairs := make([]string, 0, 6)
	if tag != strategy.Unset {
		pairs = append(pairs, "strategy", tag.String())
	}
	if plannerIP != "" {
		pairs = append(pairs, "plannerip", plannerIP)
	}
	if clusterUUID != "" {
		pairs = append(pairs, "cluster-uuid", clusterUUID)
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// Invoke runs call under the deployment tag registered for queryID (or the
// active tag for a not-yet-registered query, discovering one if needed),
// retrying on auth-denied and wrong-tag errors up to MaxAttempts times, and
// records any response hint before returning. queryID may be empty for
// calls that precede query registration (authenticate, identify-planner).
// It returns the tag the successful attempt carried, so a caller preparing
// a new query can register it against the coordinator.
func Invoke[Resp engine.Hinted](inv *Invoker, ctx context.Context, queryID, plannerIP string, call func(ctx context.Context) (Resp, error)) (Resp, strategy.Tag, error) {
	var zero Resp
	var lastErr error

	for attempt := 1; attempt <= inv.MaxAttempts; attempt++ {
		tag, err := inv.resolveTag(queryID)
		if err != nil {
			return zero, strategy.Unset, err
		}

		callCtx := attachHeaders(ctx, tag, plannerIP, inv.ClusterUUID)
		resp, err := call(callCtx)
		if err == nil {
			// The hint rides on the response body, so it's only observable
			// on success; a failed gRPC call carries a status, not a
			// decoded Resp, and this client does not read hints from
			// trailers.
			inv.observeHint(resp.HintString())
			return resp, tag, nil
		}

		classified := classify(err)
		lastErr = classified

		switch classified.(type) {
		case *AuthDeniedError:
			if _, reErr := inv.Session.Reauthenticate(ctx, inv.Session.SessionID()); reErr != nil {
				return zero, strategy.Unset, reErr
			}
		case *WrongTagError:
			inv.Coordinator.Invalidate()
			if _, reErr := inv.Session.Reauthenticate(ctx, inv.Session.SessionID()); reErr != nil {
				return zero, strategy.Unset, reErr
			}
		default:
			return zero, strategy.Unset, classified
		}

		if attempt < inv.MaxAttempts {
			select {
			case <-time.After(inv.Backoff):
			case <-ctx.Done():
				return zero, strategy.Unset, ctx.Err()
			}
		}
	}
	return zero, strategy.Unset, lastErr
}

// EnsureSessionID returns the session's current session id, authenticating
// first if this is the session's first call. Callers build request structs
// with this value in their SessionID field before invoking Invoke.
func (inv *Invoker) EnsureSessionID(ctx context.Context) (string, error) {
	return inv.Session.Authenticate(ctx)
}

func (inv *Invoker) resolveTag(queryID string) (strategy.Tag, error) {
	if queryID != "" {
		return inv.Coordinator.TagForExistingQuery(queryID), nil
	}
	return inv.Coordinator.TagForNewQuery()
}

func (inv *Invoker) observeHint(raw string) {
	if raw == "" {
		return
	}
	if tag, ok := strategy.Parse(raw); ok {
		inv.Coordinator.ObserveResponseHint(tag)
	}
}
