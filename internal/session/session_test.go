package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scopedb/quarry-go/internal/engine"
	"github.com/scopedb/quarry-go/internal/session"
)

type fakeAuthenticator struct {
	calls  atomic.Int32
	nextID func(call int32) string
}

func (f *fakeAuthenticator) Authenticate(context.Context, *engine.AuthenticateRequest) (*engine.AuthenticateResponse, error) {
	call := f.calls.Add(1)
	return &engine.AuthenticateResponse{SessionID: f.nextID(call)}, nil
}

func TestAuthenticate_CachesSessionID(t *testing.T) {
	auth := &fakeAuthenticator{nextID: func(int32) string { return "s1" }}
	s := session.NewWithClient("engine:1234", "u", "p", nil, auth)

	id, err := s.Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "s1", id)

	id2, err := s.Authenticate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "s1", id2)
	require.Equal(t, int32(1), auth.calls.Load(), "second Authenticate must not re-call the RPC")
}

func TestReauthenticate_CurrentSessionIDCallsRPC(t *testing.T) {
	auth := &fakeAuthenticator{nextID: func(call int32) string {
		if call == 1 {
			return "s1"
		}
		return "s2"
	}}
	s := session.NewWithClient("engine:1234", "u", "p", nil, auth)

	id0, err := s.Authenticate(context.Background())
	require.NoError(t, err)

	id, err := s.Reauthenticate(context.Background(), id0)
	require.NoError(t, err)
	require.Equal(t, "s2", id)
	require.Equal(t, int32(2), auth.calls.Load())
}

func TestReauthenticate_ConcurrentCallersConverge(t *testing.T) {
	auth := &fakeAuthenticator{nextID: func(call int32) string {
		if call == 1 {
			return "s1"
		}
		return "s2"
	}}
	s := session.NewWithClient("engine:1234", "u", "p", nil, auth)

	staleID, err := s.Authenticate(context.Background())
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	results := make([]string, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id, err := s.Reauthenticate(context.Background(), staleID)
			require.NoError(t, err)
			results[i] = id
		}(i)
	}
	wg.Wait()

	// Every caller observed the same stale id, so only the one that wins
	// the lock race actually re-authenticates; the rest see the winner's
	// fresh id already installed and return it without an RPC of their
	// own.
	for _, r := range results {
		require.Equal(t, "s2", r)
	}
	require.Equal(t, int32(2), auth.calls.Load(), "concurrent reauthenticate callers must converge on a single RPC")
}

func TestAuthenticate_EmptySessionIDIsAnError(t *testing.T) {
	auth := &fakeAuthenticator{nextID: func(int32) string { return "" }}
	s := session.NewWithClient("engine:1234", "u", "p", nil, auth)

	_, err := s.Authenticate(context.Background())
	require.Error(t, err)
}
