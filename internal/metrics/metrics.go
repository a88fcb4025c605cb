package metrics

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Package-level Prometheus collectors. They are registered via Register;
// until then every increment is a no-op so the orchestrator works without
// a metrics endpoint.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripstack",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of application service spawns.",
		}, []string{"name"},
	)
	healthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tripstack",
			Subsystem: "health",
			Name:      "probe_attempts_total",
			Help:      "Readiness probe attempts per service.",
		}, []string{"name"},
	)
	serviceReady = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tripstack",
			Subsystem: "service",
			Name:      "ready",
			Help:      "1 when the service's readiness probe has succeeded.",
		}, []string{"name"},
	)
	runState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tripstack",
			Subsystem: "run",
			Name:      "state",
			Help:      "Current run state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	degraded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tripstack",
			Subsystem: "run",
			Name:      "degraded",
			Help:      "1 when the run completed startup in degraded form.",
		},
	)
)

// Register registers all metrics with the provided registerer. It is safe
// to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	for _, c := range []prometheus.Collector{
		serviceStarts, healthAttempts, serviceReady, runState, degraded,
	} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

func IncServiceStart(name string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(name).Inc()
	}
}

func IncHealthAttempt(name string) {
	if regOK.Load() {
		healthAttempts.WithLabelValues(name).Inc()
	}
}

func SetServiceReady(name string, ready bool) {
	if !regOK.Load() {
		return
	}
	v := 0.0
	if ready {
		v = 1.0
	}
	serviceReady.WithLabelValues(name).Set(v)
}

// SetRunState marks state as the single active run state.
func SetRunState(state string, all []string) {
	if !regOK.Load() {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		runState.WithLabelValues(s).Set(v)
	}
}

func SetDegraded(d bool) {
	if !regOK.Load() {
		return
	}
	if d {
		degraded.Set(1)
	} else {
		degraded.Set(0)
	}
}
