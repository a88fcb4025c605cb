package shutdown

import (
	"log/slog"
	"sync"
	"time"

	"tripstack/internal/manager"
	"tripstack/internal/ports"
)

const defaultStopWait = 5 * time.Second

// Coordinator tears the run down: a polite stop of every registered
// process, then a force-free sweep of every managed port so no orphaned
// listener survives the run. It is registered once with the signal layer
// and guarded so a second signal cannot re-enter the teardown.
type Coordinator struct {
	mgr      *manager.Manager
	ports    []int
	stopWait time.Duration
	once     sync.Once
}

func New(mgr *manager.Manager, managedPorts []int) *Coordinator {
	return &Coordinator{mgr: mgr, ports: managedPorts, stopWait: defaultStopWait}
}

// Shutdown is idempotent: only the first call does work, later calls
// return once the first has finished.
func (c *Coordinator) Shutdown() {
	c.once.Do(c.run)
}

func (c *Coordinator) run() {
	for _, p := range c.mgr.Processes() {
		st := p.Snapshot()
		// A process that never spawned or already exited is success here.
		if err := p.Stop(c.stopWait); err != nil {
			slog.Warn("stop failed", "service", st.Name, "pid", st.PID, "error", err)
			continue
		}
		slog.Info("service stopped", "service", st.Name, "pid", st.PID)
	}
	// Second pass: whatever still holds a managed port did not honor the
	// polite stop (or was never ours). Free the ports unconditionally.
	for _, port := range c.ports {
		if pids := ports.PIDs(port); len(pids) > 0 {
			slog.Info("force-freeing port", "port", port, "pids", pids)
			ports.Free(port, c.stopWait)
		}
	}
}
