package netsec

//
// Metrics definitions
//

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsSummaryObjectives returns the summary objectives for promauto.NewSummary.
func metricsSummaryObjectives() map[float64]float64 {
	return map[float64]float64{
		0.25: 0.010, // 0.240 <= φ <= 0.260
		0.5:  0.010, // 0.490 <= φ <= 0.510
		0.75: 0.010, // 0.740 <= φ <= 0.760
		0.9:  0.010, // 0.899 <= φ <= 0.901
		0.99: 0.001, // 0.989 <= φ <= 0.991
	}
}

var (
	// metricHandshakesCount counts TLS handshake attempts by result,
	// where result is "ok" or a stable failure string.
	metricHandshakesCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netfetch_handshakes_count",
		Help: "Total number of TLS handshake attempts",
	}, []string{"result"})

	// metricVerifyFailuresCount counts certificate verification
	// failures by reason code.
	metricVerifyFailuresCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netfetch_verify_failures_count",
		Help: "Total number of certificate verification failures",
	}, []string{"reason"})

	// metricHandshakeDurationSeconds summarizes the handshake duration.
	metricHandshakeDurationSeconds = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "netfetch_handshake_duration_seconds",
		Help:       "Summarizes the time to complete a TLS handshake (in seconds)",
		Objectives: metricsSummaryObjectives(),
	})

	// metricPoolActiveGauge gauges connections checked out to callers.
	//
	// The pool gauges assume a single Connector per process: with more
	// than one, each pool overwrites the other's last published value.
	metricPoolActiveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netfetch_pool_active_gauge",
		Help: "The number of pool connections checked out to callers",
	})

	// metricPoolIdleGauge gauges idle pooled connections. Same single
	// Connector assumption as metricPoolActiveGauge.
	metricPoolIdleGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netfetch_pool_idle_gauge",
		Help: "The number of idle pooled connections",
	})

	// metricPoolReuseCount counts checkouts satisfied by the pool.
	metricPoolReuseCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netfetch_pool_reuse_count",
		Help: "Total number of connections reused from the pool",
	})
)
