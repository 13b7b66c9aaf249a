package mocks

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/netfetch/netfetch/internal/model"
)

// TLSHandshaker is a mockable model.TLSHandshaker.
type TLSHandshaker struct {
	MockHandshake func(ctx context.Context, conn net.Conn, config *tls.Config) (
		net.Conn, tls.ConnectionState, error)
}

var _ model.TLSHandshaker = &TLSHandshaker{}

// Handshake calls MockHandshake.
func (th *TLSHandshaker) Handshake(ctx context.Context, conn net.Conn, config *tls.Config) (
	net.Conn, tls.ConnectionState, error) {
	return th.MockHandshake(ctx, conn, config)
}

// TLSConn is a mockable TLS connection.
type TLSConn struct {
	// Conn is the embedded mockable Conn.
	Conn

	// MockConnectionState allows to mock the ConnectionState method.
	MockConnectionState func() tls.ConnectionState

	// MockHandshakeContext allows to mock the HandshakeContext method.
	MockHandshakeContext func(ctx context.Context) error
}

// ConnectionState calls MockConnectionState.
func (c *TLSConn) ConnectionState() tls.ConnectionState {
	return c.MockConnectionState()
}

// HandshakeContext calls MockHandshakeContext.
func (c *TLSConn) HandshakeContext(ctx context.Context) error {
	return c.MockHandshakeContext(ctx)
}

// CertVerifier is a mockable model.CertVerifier.
type CertVerifier struct {
	MockVerifyPeer func(host string, rawCerts [][]byte) error
}

var _ model.CertVerifier = &CertVerifier{}

// VerifyPeer calls MockVerifyPeer.
func (v *CertVerifier) VerifyPeer(host string, rawCerts [][]byte) error {
	return v.MockVerifyPeer(host, rawCerts)
}
