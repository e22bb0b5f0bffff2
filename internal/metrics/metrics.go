package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DiscoveryRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castscan",
		Name:      "discovery_runs_total",
		Help:      "Total discovery runs by outcome (ok, failed, cancelled).",
	}, []string{"outcome"})

	DiscoveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "castscan",
		Name:      "discovery_duration_seconds",
		Help:      "Wall time of a complete discovery run in seconds.",
		Buckets:   []float64{0.5, 1, 2, 3, 5, 7, 10, 20},
	})

	StrategyDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "castscan",
		Name:      "strategy_duration_seconds",
		Help:      "Discovery strategy duration in seconds by strategy name.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"strategy"})

	StrategyDevices = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "castscan",
		Name:      "strategy_devices",
		Help:      "Devices found by the most recent run of each strategy.",
	}, []string{"strategy"})

	ProbeAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castscan",
		Name:      "probe_attempts_total",
		Help:      "Remote-control ping probes by outcome (match, mismatch, error).",
	}, []string{"outcome"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "castscan",
		Name:      "http_requests_total",
		Help:      "Total API requests by method, path and status code.",
	}, []string{"method", "path", "status"})
)

// Register adds every castscan collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		DiscoveryRunsTotal,
		DiscoveryDuration,
		StrategyDuration,
		StrategyDevices,
		ProbeAttemptsTotal,
		HTTPRequestsTotal,
	)
}
