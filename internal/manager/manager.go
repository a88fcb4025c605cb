package manager

import (
	"fmt"
	"log/slog"
	"sync"

	"tripstack/internal/logger"
	"tripstack/internal/metrics"
	"tripstack/internal/process"
)

// Env builds the environment for a service about to be spawned.
type Env func(extra ...string) []string

// Manager spawns the application services and owns the run-scoped registry
// of every process ever created, in spawn order. Shutdown reads the
// registry, so an entry is recorded before the spawn is attempted: a
// half-started run can still be torn down completely.
type Manager struct {
	mu    sync.Mutex
	procs []*process.Process

	env Env
	log logger.Config
}

func New(env Env, log logger.Config) *Manager {
	return &Manager{env: env, log: log}
}

// StartAll spawns the given specs in order. The first spawn failure aborts
// the remaining sequence and is returned as a fatal error; processes
// spawned before the failure stay registered and running.
func (m *Manager) StartAll(specs []process.Spec) error {
	for i := range specs {
		if err := m.Start(specs[i]); err != nil {
			return fmt.Errorf("spawn %s: %w", specs[i].Name, err)
		}
	}
	return nil
}

// Start spawns a single service and registers it, even when the spawn
// itself fails.
func (m *Manager) Start(spec process.Spec) error {
	p := process.New(spec)
	m.mu.Lock()
	m.procs = append(m.procs, p)
	m.mu.Unlock()

	outW, errW, err := m.log.ChildWriters(spec.Name)
	if err != nil {
		slog.Warn("child log setup failed, discarding output",
			"service", spec.Name, "error", err)
	}
	if err := p.Start(m.env(spec.Env...), outW, errW); err != nil {
		return err
	}
	st := p.Snapshot()
	slog.Info("service spawned", "service", spec.Name, "pid", st.PID, "port", spec.Port)
	metrics.IncServiceStart(spec.Name)
	return nil
}

// Processes returns the registry in spawn order.
func (m *Manager) Processes() []*process.Process {
	m.mu.Lock()
	out := make([]*process.Process, len(m.procs))
	copy(out, m.procs)
	m.mu.Unlock()
	return out
}

// Statuses returns a snapshot per registered process, in spawn order.
func (m *Manager) Statuses() []process.Status {
	procs := m.Processes()
	out := make([]process.Status, 0, len(procs))
	for _, p := range procs {
		out = append(out, p.Snapshot())
	}
	return out
}
