package session

import "time"

// TLSMode selects how the RPC channel is secured.
type TLSMode int

const (
	TLSModeNone TLSMode = iota
	TLSModeSystemCA
	TLSModeCustomPEM
)

// TLSConfig configures channel security. CAPEM takes precedence; CAPath is
// read only when CAPEM is empty. When both are empty under
// TLSModeCustomPEM, construction fails with a configuration error.
type TLSConfig struct {
	Mode TLSMode

	CAPEM  []byte
	CAPath string

	CertPEM []byte
	KeyPEM  []byte

	ServerNameOverride string
}

// ChannelConfig is the fixed menu of gRPC channel options this client
// recognizes (spec §4.3). An HTTP/2 ping-policy trio (max pings without
// data, min time between pings, min ping interval without data) was
// dropped from this menu: grpc-go's client keepalive.ClientParameters
// exposes only Time/Timeout/PermitWithoutStream, so there is no client-side
// knob those settings could bind to.
type ChannelConfig struct {
	KeepaliveIdleTimeout  time.Duration
	KeepalivePingInterval time.Duration
	PermitWithoutCalls    bool

	MaxInboundMessageBytes  int
	MaxOutboundMessageBytes int

	// PrepareTimeout bounds the prepare-statement RPC specifically, since
	// planning can run long on a cold cache while the rest of a query's
	// RPCs should fail fast. Zero means no additional bound beyond ctx.
	PrepareTimeout time.Duration

	TLS TLSConfig
}

const (
	DefaultMaxInboundMessageBytes  = 100 * 1024 * 1024
	DefaultMaxOutboundMessageBytes = 300 * 1024 * 1024
)

func (c ChannelConfig) MaxInbound() int {
	if c.MaxInboundMessageBytes <= 0 {
		return DefaultMaxInboundMessageBytes
	}
	return c.MaxInboundMessageBytes
}

func (c ChannelConfig) MaxOutbound() int {
	if c.MaxOutboundMessageBytes <= 0 {
		return DefaultMaxOutboundMessageBytes
	}
	return c.MaxOutboundMessageBytes
}
