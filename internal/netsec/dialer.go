package netsec

import (
	"context"
	"net"
	"time"

	"github.com/netfetch/netfetch/internal/model"
)

// NewDialer creates a new dialer using the given logger.
//
// The dialer guarantees:
//
// 1. logging
//
// 2. error wrapping
func NewDialer(logger model.DebugLogger) model.Dialer {
	return &dialerLogger{
		Dialer: &dialerErrWrapper{
			Dialer: &dialerSystem{},
		},
		DebugLogger: logger,
	}
}

// underlyingDialer is the net.Dialer we use by default.
var underlyingDialer = &net.Dialer{
	Timeout:   15 * time.Second,
	KeepAlive: 15 * time.Second,
}

// dialerSystem dials using the Go stdlib.
type dialerSystem struct{}

var _ model.Dialer = &dialerSystem{}

// DialContext implements Dialer.DialContext.
func (d *dialerSystem) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return underlyingDialer.DialContext(ctx, network, address)
}

// CloseIdleConnections implements Dialer.CloseIdleConnections.
func (d *dialerSystem) CloseIdleConnections() {
	// nothing
}

// dialerErrWrapper wraps the returned error to carry a failure string.
type dialerErrWrapper struct {
	// Dialer is the underlying dialer.
	Dialer model.Dialer
}

var _ model.Dialer = &dialerErrWrapper{}

// DialContext implements Dialer.DialContext.
func (d *dialerErrWrapper) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, NewErrWrapper(classifyGenericError, ConnectOperation, err)
	}
	return conn, nil
}

// CloseIdleConnections implements Dialer.CloseIdleConnections.
func (d *dialerErrWrapper) CloseIdleConnections() {
	d.Dialer.CloseIdleConnections()
}

// dialerLogger is a Dialer with logging.
type dialerLogger struct {
	// Dialer is the underlying dialer.
	Dialer model.Dialer

	// DebugLogger is the underlying logger.
	DebugLogger model.DebugLogger
}

var _ model.Dialer = &dialerLogger{}

// DialContext implements Dialer.DialContext.
func (d *dialerLogger) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.DebugLogger.Debugf("dial %s/%s...", address, network)
	start := time.Now()
	conn, err := d.Dialer.DialContext(ctx, network, address)
	elapsed := time.Since(start)
	if err != nil {
		d.DebugLogger.Debugf("dial %s/%s... %s in %s", address, network, err, elapsed)
		return nil, err
	}
	d.DebugLogger.Debugf("dial %s/%s... ok in %s", address, network, elapsed)
	return conn, nil
}

// CloseIdleConnections implements Dialer.CloseIdleConnections.
func (d *dialerLogger) CloseIdleConnections() {
	d.Dialer.CloseIdleConnections()
}
