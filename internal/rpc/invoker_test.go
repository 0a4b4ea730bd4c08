package rpc_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scopedb/quarry-go/internal/engine"
	"github.com/scopedb/quarry-go/internal/rpc"
	"github.com/scopedb/quarry-go/internal/session"
	"github.com/scopedb/quarry-go/internal/strategy"
)

type fakeAuth struct{ id string }

func (f *fakeAuth) Authenticate(context.Context, *engine.AuthenticateRequest) (*engine.AuthenticateResponse, error) {
	return &engine.AuthenticateResponse{SessionID: f.id}, nil
}

func newInvoker(coord *strategy.Coordinator) *rpc.Invoker {
	sess := session.NewWithClient("engine:1", "u", "p", nil, &fakeAuth{id: "s1"})
	return rpc.New(sess, coord, 5, time.Millisecond, "")
}

func wrongTagErr() error {
	return status.Error(codes.FailedPrecondition, "status: 456")
}

func authDeniedErr() error {
	return status.Error(codes.PermissionDenied, "Access denied for user")
}

func TestInvoke_RediscoversStrategyOnFirstRequest(t *testing.T) {
	attempts := 0
	discover := func(tag strategy.Tag) (bool, error) {
		attempts++
		if tag == strategy.Blue {
			return true, wrongTagErr()
		}
		return false, nil
	}
	coord := strategy.New(discover, 0)
	inv := newInvoker(coord)

	calls := 0
	resp, tag, err := rpc.Invoke(inv, context.Background(), "", "", func(ctx context.Context) (*engine.PrepareStatementResponse, error) {
		calls++
		return &engine.PrepareStatementResponse{QueryID: "q1"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "q1", resp.QueryID)
	require.Equal(t, 1, calls)
	require.Equal(t, strategy.Green, tag)

	active, _ := coord.Snapshot()
	require.Equal(t, strategy.Green, active)
}

func TestInvoke_WrongTagRetriesAndSucceeds(t *testing.T) {
	coord := strategy.New(func(strategy.Tag) (bool, error) { return false, nil }, 0)
	// Seed active=Blue directly, bypassing discovery, to model an
	// already-running process (Scenario 3).
	coord.ObserveResponseHint(strategy.Blue)
	coord.ApplyPendingAtSafePoint()

	inv := newInvoker(coord)
	inv.Coordinator = coord

	failedOnce := false
	resp, _, err := rpc.Invoke(inv, context.Background(), "q3", "", func(ctx context.Context) (*engine.GetNextResultBatchResponse, error) {
		if !failedOnce {
			failedOnce = true
			return nil, wrongTagErr()
		}
		return &engine.GetNextResultBatchResponse{}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
}

func TestInvoke_AuthDeniedReauthenticatesAndRetries(t *testing.T) {
	coord := strategy.New(nil, 0)
	coord.ObserveResponseHint(strategy.Blue)
	coord.ApplyPendingAtSafePoint()
	inv := newInvoker(coord)

	calls := 0
	resp, _, err := rpc.Invoke(inv, context.Background(), "", "", func(ctx context.Context) (*engine.StatusResponse, error) {
		calls++
		if calls == 1 {
			return nil, authDeniedErr()
		}
		return &engine.StatusResponse{Status: "ok"}, nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, 2, calls)
}

func TestInvoke_RetryBudgetExhausted(t *testing.T) {
	coord := strategy.New(nil, 0)
	coord.ObserveResponseHint(strategy.Blue)
	coord.ApplyPendingAtSafePoint()
	inv := newInvoker(coord)
	inv.MaxAttempts = 3
	inv.Backoff = time.Millisecond

	calls := 0
	_, _, err := rpc.Invoke(inv, context.Background(), "", "", func(ctx context.Context) (*engine.StatusResponse, error) {
		calls++
		return nil, wrongTagErr()
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
	require.IsType(t, &rpc.WrongTagError{}, err)
}

func TestInvoke_OtherErrorsSurfaceImmediately(t *testing.T) {
	coord := strategy.New(nil, 0)
	coord.ObserveResponseHint(strategy.Blue)
	coord.ApplyPendingAtSafePoint()
	inv := newInvoker(coord)

	calls := 0
	_, _, err := rpc.Invoke(inv, context.Background(), "", "", func(ctx context.Context) (*engine.StatusResponse, error) {
		calls++
		return nil, status.Error(codes.Unavailable, "transport is closing")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls, "a non-distinguished error must not be retried")
}

func TestInvoke_ResponseHintUpdatesPending(t *testing.T) {
	coord := strategy.New(nil, 0)
	coord.ObserveResponseHint(strategy.Green)
	coord.ApplyPendingAtSafePoint()
	inv := newInvoker(coord)

	_, _, err := rpc.Invoke(inv, context.Background(), "", "", func(ctx context.Context) (*engine.ExecuteStatementResponse, error) {
		return &engine.ExecuteStatementResponse{Hint: engine.Hint{NextStrategy: "Blue"}}, nil
	})
	require.NoError(t, err)

	active, pending := coord.Snapshot()
	require.Equal(t, strategy.Green, active)
	require.Equal(t, strategy.Blue, pending)
}
