package netsec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/netfetch/netfetch/internal/certverify"
	"github.com/netfetch/netfetch/internal/model"
)

// Default limits and timeouts used when Config leaves them zero.
const (
	defaultConnectTimeout     = 15 * time.Second
	defaultHandshakeTimeout   = 10 * time.Second
	defaultMaxIdlePerEndpoint = 4
)

// Config contains the optional connector configuration. The zero value
// is a valid configuration.
type Config struct {
	// ConnectTimeout is the OPTIONAL timeout for establishing the
	// transport connection.
	ConnectTimeout time.Duration

	// HandshakeTimeout is the OPTIONAL timeout for the TLS handshake.
	HandshakeTimeout time.Duration

	// Logger is the OPTIONAL logger.
	Logger model.Logger

	// MaxActiveConns is the OPTIONAL limit on connections checked out
	// at any given time; zero means no limit.
	MaxActiveConns int

	// MaxIdlePerEndpoint is the OPTIONAL limit on idle connections
	// kept per endpoint; zero means the default of four.
	MaxIdlePerEndpoint int

	// MaxVersion is the OPTIONAL maximum TLS version name (e.g.
	// "TLSv1.2"); empty means the policy default.
	MaxVersion string

	// MinVersion is the OPTIONAL minimum TLS version name; empty
	// means the policy default.
	MinVersion string

	// Strict selects the strict verification strategy, which
	// revalidates the presented chain independently of the stdlib.
	Strict bool
}

// Connector produces ready-to-use encrypted streams for outbound
// requests, reusing transport connections across requests to the same
// destination. The policy and the trust store are built once here and
// shared read-only by all subsequent connections.
type Connector struct {
	// connectTimeout bounds the transport dial.
	connectTimeout time.Duration

	// dialer establishes transport connections.
	dialer model.Dialer

	// handshaker performs TLS handshakes.
	handshaker model.TLSHandshaker

	// logger is the logger to use.
	logger model.Logger

	// policy is the immutable negotiation policy.
	policy *Policy

	// pool owns the reusable connections.
	pool *connPool

	// trust is the immutable trust store.
	trust *TrustStore

	// verifier is the injected verification strategy.
	verifier model.CertVerifier
}

// NewConnector creates a Connector using the trust bundle at bundlePath
// and the given optional config. This is the sole entry point for
// external callers. Errors opening or parsing the bundle, or invalid
// overrides, wrap ErrConfig and fail here rather than per connection.
func NewConnector(bundlePath string, config *Config) (*Connector, error) {
	if config == nil {
		config = &Config{}
	}
	logger := model.ValidLoggerOrDefault(config.Logger)
	trust, err := NewTrustStore(bundlePath)
	if err != nil {
		return nil, err
	}
	policy := DefaultPolicy()
	if config.MinVersion != "" {
		if policy.MinVersion, err = VersionByName(config.MinVersion); err != nil {
			return nil, err
		}
	}
	if config.MaxVersion != "" {
		if policy.MaxVersion, err = VersionByName(config.MaxVersion); err != nil {
			return nil, err
		}
	}
	if policy.MinVersion > policy.MaxVersion {
		return nil, fmt.Errorf("%w: minimum TLS version above maximum", ErrConfig)
	}
	verifier := certverify.NewChainVerifier(trust.Pool())
	if config.Strict {
		verifier = certverify.NewStrictVerifier(trust.Pool())
	}
	connectTimeout := config.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	handshakeTimeout := config.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	maxIdle := config.MaxIdlePerEndpoint
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdlePerEndpoint
	}
	logger.Debugf("trust store: %d roots from %s", trust.Count(), trust.Path())
	return &Connector{
		connectTimeout: connectTimeout,
		dialer:         NewDialer(logger),
		handshaker: newTLSHandshaker(&tlsHandshakerConfigurable{
			Timeout: handshakeTimeout,
		}, logger),
		logger:   logger,
		policy:   policy,
		pool:     newConnPool(config.MaxActiveConns, maxIdle),
		trust:    trust,
		verifier: verifier,
	}, nil
}

// Connect returns an encrypted stream towards host:port, either reusing
// a pooled connection or dialing and handshaking a fresh one. The
// stream is exclusively owned by the caller until it calls Release or
// Close. Connect does not retry: retry policy belongs to the request
// layer above.
func (c *Connector) Connect(ctx context.Context, host, port string) (*Stream, error) {
	endpoint := net.JoinHostPort(host, port)
	conn, err := c.pool.checkout(endpoint)
	if err != nil {
		return nil, NewErrWrapper(classifyGenericError, PoolCheckoutOperation, err)
	}
	for conn != nil {
		if connIsAlive(conn) {
			c.logger.Debugf("reusing connection to %s", endpoint)
			metricPoolReuseCount.Inc()
			return newStream(c.pool, endpoint, conn), nil
		}
		conn.Close()
		conn = c.pool.nextIdle(endpoint)
	}
	return c.dialAndHandshake(ctx, host, endpoint)
}

// dialAndHandshake dials a fresh transport connection and performs a
// verified TLS handshake over it. The caller must already hold a pool
// reservation, which we drop on failure.
func (c *Connector) dialAndHandshake(ctx context.Context, host, endpoint string) (*Stream, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()
	tcpConn, err := c.dialer.DialContext(dialCtx, "tcp", endpoint)
	if err != nil {
		c.pool.drop()
		return nil, err
	}
	// Fresh config per attempt: the verifier closure captures only this
	// attempt's host, so concurrent connections never share state.
	config := c.policy.TLSConfig(host, c.verifier)
	start := time.Now()
	conn, _, err := c.handshaker.Handshake(ctx, tcpConn, config)
	metricHandshakeDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metricHandshakesCount.WithLabelValues(failureString(err)).Inc()
		countVerifyFailure(err)
		c.logger.Warnf("tls connect %s: %s", endpoint, err)
		tcpConn.Close()
		c.pool.drop()
		return nil, err
	}
	metricHandshakesCount.WithLabelValues("ok").Inc()
	tlsconn, good := conn.(TLSConn)
	if !good {
		// Cannot happen with the stdlib handshaker; fail closed anyway.
		conn.Close()
		c.pool.drop()
		return nil, NewErrWrapper(classifyTLSHandshakeError, TLSHandshakeOperation,
			errors.New("handshaker returned a non-TLS conn"))
	}
	return newStream(c.pool, endpoint, tlsconn), nil
}

// CloseIdleConnections closes all the idle pooled connections.
func (c *Connector) CloseIdleConnections() {
	c.pool.closeIdle()
	c.dialer.CloseIdleConnections()
}

// failureString extracts the stable failure string from a wrapped error.
func failureString(err error) string {
	var wrapper *ErrWrapper
	if errors.As(err, &wrapper) {
		return wrapper.Failure
	}
	return "unknown"
}

// countVerifyFailure bumps the verification failure metric when err
// carries a verification rejection.
func countVerifyFailure(err error) {
	var verifyErr *certverify.ErrVerify
	if errors.As(err, &verifyErr) {
		metricVerifyFailuresCount.WithLabelValues(string(verifyErr.Reason)).Inc()
	}
}

// connIsAlive reports whether an idle pooled connection is still
// usable. We read with an immediate deadline: a timeout means the
// connection is quietly idle, while EOF, any other error, or stray
// bytes mean we must discard it.
func connIsAlive(conn TLSConn) bool {
	conn.SetReadDeadline(time.Now())
	defer conn.SetReadDeadline(time.Time{})
	buffer := make([]byte, 1)
	_, err := conn.Read(buffer)
	if err == nil {
		return false // unexpected data
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Stream is a verified encrypted stream checked out from a Connector.
// Ownership is exclusive to the caller until Release or Close, which
// may be called at most once overall.
type Stream struct {
	// TLSConn is the underlying verified connection.
	TLSConn

	// endpoint is the pool key of this stream.
	endpoint string

	// once ensures a single Release or Close.
	once sync.Once

	// pool is the owning pool.
	pool *connPool
}

// newStream creates a new stream owning conn within pool.
func newStream(pool *connPool, endpoint string, conn TLSConn) *Stream {
	return &Stream{TLSConn: conn, endpoint: endpoint, pool: pool}
}

// Release returns the underlying connection to the pool for reuse by a
// later Connect towards the same endpoint.
func (s *Stream) Release() {
	s.once.Do(func() {
		s.pool.release(s.endpoint, s.TLSConn)
	})
}

// Close discards the underlying connection instead of pooling it.
func (s *Stream) Close() error {
	err := error(nil)
	s.once.Do(func() {
		s.pool.release(s.endpoint, nil)
		err = s.TLSConn.Close()
	})
	return err
}
