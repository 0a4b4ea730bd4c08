// Package session owns one authenticated RPC channel: dialing (plain or
// TLS), authenticate/reauthenticate, and the credentials needed to redo
// authentication after the session is invalidated.
package session

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/scopedb/quarry-go/internal/engine"
)

// Authenticator performs the authenticate RPC. It is a narrow interface
// (rather than depending on *engine.Client directly) so tests can fake a
// server without a real channel.
type Authenticator interface {
	Authenticate(ctx context.Context, req *engine.AuthenticateRequest) (*engine.AuthenticateResponse, error)
}

// Session owns one gRPC channel and the current session id. sessionID is
// valid until an auth-denied error surfaces, at which point Reauthenticate
// atomically replaces it.
type Session struct {
	mu sync.Mutex

	endpoint string
	user     string
	password string

	conn      *grpc.ClientConn
	client    *engine.Client
	auth      Authenticator
	sessionID string
}

// NewWithClient builds a Session around an already-constructed engine
// client and authenticator, bypassing Dial. This exists for tests that
// need to exercise authenticate/reauthenticate serialization without a
// real channel; production code should use Dial.
func NewWithClient(endpoint, user, password string, client *engine.Client, auth Authenticator) *Session {
	return &Session{
		endpoint: endpoint,
		user:     user,
		password: password,
		client:   client,
		auth:     auth,
	}
}

// Dial opens a channel to endpoint using the given channel configuration
// and returns a Session with no session id yet; call Authenticate (or let
// the invoker trigger it lazily) before issuing query RPCs.
func Dial(endpoint, user, password string, cfg ChannelConfig) (*Session, error) {
	creds, err := transportCredentials(cfg.TLS)
	if err != nil {
		return nil, err
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveIdleTimeout,
			Timeout:             cfg.KeepalivePingInterval,
			PermitWithoutStream: cfg.PermitWithoutCalls,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxInbound()),
			grpc.MaxCallSendMsgSize(cfg.MaxOutbound()),
		),
	}

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("session: dial %s: %w", endpoint, err)
	}

	client := engine.NewClient(conn)
	return &Session{
		endpoint: endpoint,
		user:     user,
		password: password,
		conn:     conn,
		client:   client,
		auth:     client,
	}, nil
}

func transportCredentials(cfg TLSConfig) (credentials.TransportCredentials, error) {
	switch cfg.Mode {
	case TLSModeNone:
		return insecure.NewCredentials(), nil
	case TLSModeSystemCA:
		return credentials.NewTLS(&tls.Config{ServerName: cfg.ServerNameOverride}), nil
	case TLSModeCustomPEM:
		pool := x509.NewCertPool()
		pem := cfg.CAPEM
		if len(pem) == 0 && cfg.CAPath != "" {
			data, err := os.ReadFile(cfg.CAPath)
			if err != nil {
				return nil, fmt.Errorf("session: read CA file %s: %w", cfg.CAPath, err)
			}
			pem = data
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("session: no usable CA certificates in supplied PEM")
		}
		tlsCfg := &tls.Config{RootCAs: pool, ServerName: cfg.ServerNameOverride}
		if len(cfg.CertPEM) > 0 && len(cfg.KeyPEM) > 0 {
			cert, err := tls.X509KeyPair(cfg.CertPEM, cfg.KeyPEM)
			if err != nil {
				return nil, fmt.Errorf("session: load client key pair: %w", err)
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		}
		return credentials.NewTLS(tlsCfg), nil
	default:
		return nil, fmt.Errorf("session: unknown TLS mode %d", cfg.Mode)
	}
}

// Client returns the engine RPC client bound to this session's channel.
func (s *Session) Client() *engine.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// SessionID returns the current session id, or "" if authentication has
// not happened yet.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Endpoint returns the endpoint this session's channel was dialed against.
func (s *Session) Endpoint() string { return s.endpoint }

// Authenticate performs the authenticate RPC if no session id is cached
// yet. Concurrent callers converge on the same authenticate call: the
// mutex serializes them, and a caller that wins the race checks again
// under the lock before making the RPC.
func (s *Session) Authenticate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != "" {
		return s.sessionID, nil
	}
	return s.authenticateLocked(ctx)
}

// Reauthenticate forces a fresh authenticate call, but only if the current
// session id still matches staleSessionID, the id the caller saw fail. A
// caller that read the session id, lost the race to another goroutine's
// Reauthenticate, and now holds a stale value gets the winner's session id
// back instead of issuing a redundant RPC — so N concurrent auth-denied
// callers converge on one re-auth rather than each re-authenticating.
func (s *Session) Reauthenticate(ctx context.Context, staleSessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != "" && s.sessionID != staleSessionID {
		return s.sessionID, nil
	}
	s.sessionID = ""
	return s.authenticateLocked(ctx)
}

func (s *Session) authenticateLocked(ctx context.Context) (string, error) {
	resp, err := s.auth.Authenticate(ctx, &engine.AuthenticateRequest{
		User:     s.user,
		Password: s.password,
	})
	if err != nil {
		return "", fmt.Errorf("session: authenticate: %w", err)
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("session: authenticate returned empty session id")
	}
	s.sessionID = resp.SessionID
	return s.sessionID, nil
}

// Ping performs a lightweight liveness check against the engine, used by
// the connection pool's prePing option to validate a channel before
// handing it out. A session that hasn't authenticated yet has nothing to
// check against and is reported healthy; the first real call will
// authenticate it.
func (s *Session) Ping(ctx context.Context) error {
	sessionID := s.SessionID()
	if sessionID == "" {
		return nil
	}
	_, err := s.Client().Status(ctx, &engine.StatusRequest{SessionID: sessionID})
	return err
}

// Healthy reports whether the underlying transport is usable and the
// session is younger than maxAge (zero disables the age check).
func (s *Session) Healthy(createdAt time.Time, maxAge time.Duration) bool {
	// Connecting and Idle are transient, healthy states; only a channel
	// that has been torn down disqualifies itself here.
	if s.conn != nil && s.conn.GetState() == connectivity.Shutdown {
		return false
	}
	if maxAge > 0 && time.Since(createdAt) > maxAge {
		return false
	}
	return true
}

// Close tears down the underlying channel.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
