package netsec

import (
	"fmt"
	"sync"
)

// connPool owns the reusable TLS streams of a Connector, keyed by the
// destination host:port endpoint. The pool is the single mutable shared
// resource of this package: every access happens under its mutex, and
// accounting covers both idle connections and connections currently
// checked out to callers.
type connPool struct {
	// mu protects all the fields below.
	mu sync.Mutex

	// idle maps an endpoint to its idle connections.
	idle map[string][]TLSConn

	// idleCount counts the idle connections across all endpoints.
	idleCount int

	// active counts the connections checked out to callers.
	active int

	// maxActive limits active connections; zero means no limit.
	maxActive int

	// maxIdlePerEndpoint limits the idle list of each endpoint.
	maxIdlePerEndpoint int
}

// newConnPool creates a new connection pool with the given limits.
func newConnPool(maxActive, maxIdlePerEndpoint int) *connPool {
	return &connPool{
		idle:               make(map[string][]TLSConn),
		maxActive:          maxActive,
		maxIdlePerEndpoint: maxIdlePerEndpoint,
	}
}

// checkout reserves capacity for one connection towards endpoint and
// returns an idle connection for it, if any. A nil connection with a
// nil error means the caller holds the reservation and should dial a
// fresh connection. When the active limit is reached and no idle
// connection exists, checkout fails with ErrPoolExhausted.
func (p *connPool) checkout(endpoint string) (TLSConn, error) {
	defer p.syncMetrics()
	p.mu.Lock()
	defer p.mu.Unlock()
	if conns := p.idle[endpoint]; len(conns) > 0 {
		conn := conns[len(conns)-1]
		p.idle[endpoint] = conns[:len(conns)-1]
		p.idleCount--
		p.active++
		return conn, nil
	}
	if p.maxActive > 0 && p.active >= p.maxActive {
		return nil, fmt.Errorf("%w: %d connections active", ErrPoolExhausted, p.active)
	}
	p.active++
	return nil, nil
}

// nextIdle pops another idle connection for endpoint without touching
// the caller's reservation. Callers use it to replace a pooled
// connection that turned out to be dead.
func (p *connPool) nextIdle(endpoint string) TLSConn {
	defer p.syncMetrics()
	p.mu.Lock()
	defer p.mu.Unlock()
	conns := p.idle[endpoint]
	if len(conns) < 1 {
		return nil
	}
	conn := conns[len(conns)-1]
	p.idle[endpoint] = conns[:len(conns)-1]
	p.idleCount--
	return conn
}

// release drops the caller's reservation and, when conn is not nil,
// returns it to the endpoint's idle list. A full idle list causes the
// connection to be closed instead.
func (p *connPool) release(endpoint string, conn TLSConn) {
	defer p.syncMetrics()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
	if conn == nil {
		return
	}
	if len(p.idle[endpoint]) >= p.maxIdlePerEndpoint {
		conn.Close()
		return
	}
	p.idle[endpoint] = append(p.idle[endpoint], conn)
	p.idleCount++
}

// drop drops the caller's reservation without returning a connection.
func (p *connPool) drop() {
	defer p.syncMetrics()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active--
}

// closeIdle closes and forgets every idle connection.
func (p *connPool) closeIdle() {
	defer p.syncMetrics()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, conns := range p.idle {
		for _, conn := range conns {
			conn.Close()
		}
	}
	p.idle = make(map[string][]TLSConn)
	p.idleCount = 0
}

// stats returns the current active and idle counters.
func (p *connPool) stats() (active, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active, p.idleCount
}

// syncMetrics publishes the pool gauges. It takes the lock itself, so
// call it only when the lock is not held (e.g. from a defer running
// after the unlock).
func (p *connPool) syncMetrics() {
	active, idle := p.stats()
	metricPoolActiveGauge.Set(float64(active))
	metricPoolIdleGauge.Set(float64(idle))
}
