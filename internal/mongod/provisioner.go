package mongod

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tripstack/internal/detector"
)

const (
	DefaultPollAttempts = 15
	DefaultPollInterval = 2 * time.Second
)

// Status describes the document store after provisioning. Recomputed each
// run, never persisted.
type Status struct {
	Running  bool   `json:"running"`
	Strategy string `json:"strategy,omitempty"` // how it came up, or "already-running"
}

// Provisioner guarantees the document store is reachable, or reports that
// it could not be, leaving the degrade-or-abort decision to the caller.
type Provisioner struct {
	Port       int
	Strategies []Strategy
	// Detectors decide whether the daemon is already running; repeated
	// runs must never double-start it. Defaults to a process-name check
	// plus a port probe.
	Detectors []detector.Detector

	PollAttempts int
	PollInterval time.Duration
}

func NewProvisioner(port int) *Provisioner {
	return &Provisioner{
		Port:       port,
		Strategies: DefaultStrategies(port),
		Detectors: []detector.Detector{
			detector.CommandDetector{Command: "pgrep -x mongod"},
			detector.TCPDetector{Port: port},
		},
	}
}

// Ensure makes the document store reachable. It never returns an error for
// "could not start" — that is reported as Status.Running == false so the
// orchestrating sequence can downgrade to a cache-disabled run.
func (p *Provisioner) Ensure(ctx context.Context) Status {
	for _, d := range p.Detectors {
		if ok, _ := d.Alive(); ok {
			slog.Info("document store already running", "via", d.Describe())
			return Status{Running: true, Strategy: "already-running"}
		}
	}

	attempted := false
	for _, s := range p.Strategies {
		if !s.Available() {
			slog.Debug("start strategy unavailable", "strategy", s.Describe())
			continue
		}
		attempted = true
		slog.Info("starting document store", "strategy", s.Describe())
		if err := s.Start(ctx); err != nil {
			slog.Warn("start strategy failed, trying next", "strategy", s.Describe(), "error", err)
			continue
		}
		if p.waitReachable(ctx) {
			return Status{Running: true, Strategy: s.Describe()}
		}
		slog.Warn("document store not reachable after start", "strategy", s.Describe())
	}
	if !attempted {
		slog.Warn("no document store start strategy available on this host")
	}
	return Status{Running: false}
}

func (p *Provisioner) waitReachable(ctx context.Context) bool {
	attempts := p.PollAttempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	interval := p.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	probe := detector.TCPDetector{Port: p.Port}
	for i := 1; i <= attempts; i++ {
		if ok, _ := probe.Alive(); ok {
			return true
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
	return false
}

// Addr is the store's connection endpoint, for log messages.
func (p *Provisioner) Addr() string { return fmt.Sprintf("localhost:%d", p.Port) }
