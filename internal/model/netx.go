package model

//
// Network extension interfaces
//

import (
	"context"
	"crypto/tls"
	"net"
)

// Dialer establishes network connections.
type Dialer interface {
	// DialContext behaves like net.Dialer.DialContext.
	DialContext(ctx context.Context, network, address string) (net.Conn, error)

	// CloseIdleConnections closes idle connections, if any.
	CloseIdleConnections()
}

// TLSHandshaker performs a TLS handshake over an established stream.
type TLSHandshaker interface {
	// Handshake performs the handshake using the given config and returns
	// the resulting connection along with its negotiated state. The conn
	// is closed by the caller on failure.
	Handshake(ctx context.Context, conn net.Conn, config *tls.Config) (
		net.Conn, tls.ConnectionState, error)
}

// CertVerifier is the capability that decides whether to trust the
// certificate chain presented by a TLS peer. Implementations receive the
// hostname we intended to reach and the raw DER certificates in the order
// presented by the peer (leaf first). Returning a non-nil error aborts
// the handshake: there is no way to downgrade a rejection to a warning.
//
// Implementations MUST be safe for concurrent use and MUST NOT perform
// network I/O: the underlying TLS library invokes them synchronously
// while it may be holding internal locks.
type CertVerifier interface {
	// VerifyPeer returns nil to accept the peer or an error to reject it.
	VerifyPeer(host string, rawCerts [][]byte) error
}
