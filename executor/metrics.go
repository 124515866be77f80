// executor/metrics.go
// Copyright(c) 2025 nodexec contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package executor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects burn statistics for Prometheus. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	burns          *prometheus.CounterVec
	stagings       prometheus.Counter
	iterations     prometheus.Counter
	residual       prometheus.Histogram
	burnDuration   prometheus.Histogram
	nodesRemaining prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		burns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nodexec_burns_total",
			Help: "Total burns executed by final state and exit reason.",
		}, []string{"state", "reason"}),
		stagings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nodexec_stagings_total",
			Help: "Total stages activated during burns.",
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nodexec_burn_loop_iterations_total",
			Help: "Total burn control loop iterations.",
		}),
		residual: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nodexec_residual_delta_v_meters_per_second",
			Help:    "Remaining delta-v at engine shutdown.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 50},
		}),
		burnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nodexec_burn_duration_sim_seconds",
			Help:    "Simulated time from ignition to shutdown.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		nodesRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nodexec_nodes_remaining",
			Help: "Maneuver nodes left in the vessel's plan.",
		}),
	}

	reg.MustRegister(
		m.burns,
		m.stagings,
		m.iterations,
		m.residual,
		m.burnDuration,
		m.nodesRemaining,
	)

	return m
}

func (m *Metrics) observeBurn(r BurnResult) {
	if m == nil {
		return
	}
	m.burns.WithLabelValues(r.State.String(), r.Reason.String()).Inc()
	m.stagings.Add(float64(r.Stagings))
	m.iterations.Add(float64(r.Iterations))
	m.residual.Observe(r.ResidualDeltaV)
	if r.ShutdownUT >= r.IgnitionUT {
		m.burnDuration.Observe(r.ShutdownUT - r.IgnitionUT)
	}
}

func (m *Metrics) setNodesRemaining(n int) {
	if m != nil {
		m.nodesRemaining.Set(float64(n))
	}
}

// MetricsHandler returns an HTTP handler that serves the metrics gathered
// by g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
