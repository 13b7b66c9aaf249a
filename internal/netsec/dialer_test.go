package netsec

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/netfetch/netfetch/internal/mocks"
	"github.com/netfetch/netfetch/internal/model"
)

func TestDialerSystem(t *testing.T) {
	t.Run("DialContext with an invalid address", func(t *testing.T) {
		d := &dialerSystem{}
		conn, err := d.DialContext(context.Background(), "tcp", "\t")
		if err == nil {
			t.Fatal("expected an error here")
		}
		if conn != nil {
			t.Fatal("expected a nil conn here")
		}
	})

	t.Run("CloseIdleConnections", func(t *testing.T) {
		d := &dialerSystem{}
		d.CloseIdleConnections() // must not crash
	})
}

func TestDialerErrWrapper(t *testing.T) {
	t.Run("on success", func(t *testing.T) {
		expectedConn := &mocks.Conn{}
		d := &dialerErrWrapper{
			Dialer: &mocks.Dialer{
				MockDialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
					return expectedConn, nil
				},
			},
		}
		conn, err := d.DialContext(context.Background(), "tcp", "10.0.0.1:443")
		if err != nil {
			t.Fatal(err)
		}
		if conn != expectedConn {
			t.Fatal("unexpected conn")
		}
	})

	t.Run("on failure", func(t *testing.T) {
		d := &dialerErrWrapper{
			Dialer: &mocks.Dialer{
				MockDialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
					return nil, io.EOF
				},
			},
		}
		conn, err := d.DialContext(context.Background(), "tcp", "10.0.0.1:443")
		if conn != nil {
			t.Fatal("expected a nil conn here")
		}
		var wrapper *ErrWrapper
		if !errors.As(err, &wrapper) {
			t.Fatal("the error was not wrapped")
		}
		if wrapper.Failure != FailureEOFError {
			t.Fatal("unexpected failure", wrapper.Failure)
		}
		if wrapper.Operation != ConnectOperation {
			t.Fatal("unexpected operation", wrapper.Operation)
		}
	})

	t.Run("CloseIdleConnections forwards the call", func(t *testing.T) {
		var called bool
		d := &dialerErrWrapper{
			Dialer: &mocks.Dialer{
				MockCloseIdleConnections: func() {
					called = true
				},
			},
		}
		d.CloseIdleConnections()
		if !called {
			t.Fatal("the call was not forwarded")
		}
	})
}

func TestDialerLogger(t *testing.T) {
	t.Run("on success", func(t *testing.T) {
		expectedConn := &mocks.Conn{}
		d := &dialerLogger{
			Dialer: &mocks.Dialer{
				MockDialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
					return expectedConn, nil
				},
			},
			DebugLogger: model.DiscardLogger,
		}
		conn, err := d.DialContext(context.Background(), "tcp", "10.0.0.1:443")
		if err != nil {
			t.Fatal(err)
		}
		if conn != expectedConn {
			t.Fatal("unexpected conn")
		}
	})

	t.Run("on failure", func(t *testing.T) {
		expected := errors.New("mocked error")
		d := &dialerLogger{
			Dialer: &mocks.Dialer{
				MockDialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
					return nil, expected
				},
			},
			DebugLogger: model.DiscardLogger,
		}
		conn, err := d.DialContext(context.Background(), "tcp", "10.0.0.1:443")
		if !errors.Is(err, expected) {
			t.Fatal("not the error we expected", err)
		}
		if conn != nil {
			t.Fatal("expected a nil conn here")
		}
	})
}

func TestNewDialer(t *testing.T) {
	t.Run("dials a local listener", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer listener.Close()
		go func() {
			conn, err := listener.Accept()
			if err == nil {
				conn.Close()
			}
		}()
		d := NewDialer(model.DiscardLogger)
		conn, err := d.DialContext(context.Background(), "tcp", listener.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		conn.Close()
	})

	t.Run("wraps the dial error", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		endpoint := listener.Addr().String()
		listener.Close() // free the port so the dial is refused
		d := NewDialer(model.DiscardLogger)
		conn, err := d.DialContext(context.Background(), "tcp", endpoint)
		if conn != nil {
			t.Fatal("expected a nil conn here")
		}
		var wrapper *ErrWrapper
		if !errors.As(err, &wrapper) {
			t.Fatal("the error was not wrapped")
		}
		if wrapper.Failure != FailureConnectionRefused {
			t.Fatal("unexpected failure", wrapper.Failure)
		}
	})
}
