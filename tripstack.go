package tripstack

import (
	"context"

	"tripstack/internal/config"
	"tripstack/internal/orchestrator"
	"tripstack/internal/process"
)

// Re-export core types for external consumers. These are aliases so
// conversions are zero-cost.

type RunConfig = config.RunConfig

type State = orchestrator.State

type Status = process.Status

type ExitError = orchestrator.ExitError

// LoadConfig builds the immutable run configuration from an optional TOML
// file overlaid with the environment.
func LoadConfig(path string) (*RunConfig, error) { return config.Load(path) }

// Launcher is a thin facade over the internal orchestrator. It provides a
// stable public API for embedding the launch sequence in another tool.
type Launcher struct{ inner *orchestrator.Orchestrator }

func New(cfg *RunConfig) *Launcher {
	return &Launcher{inner: orchestrator.New(cfg)}
}

// Run executes the launch sequence and blocks until ctx is cancelled.
func (l *Launcher) Run(ctx context.Context) error { return l.inner.Run(ctx) }

// Shutdown tears the run down; safe to call more than once.
func (l *Launcher) Shutdown() { l.inner.Shutdown() }

// State returns the current run state and whether the run is degraded.
func (l *Launcher) State() (State, bool) { return l.inner.State() }

// Statuses snapshots every process the run ever spawned, in spawn order.
func (l *Launcher) Statuses() []Status { return l.inner.Manager().Statuses() }
