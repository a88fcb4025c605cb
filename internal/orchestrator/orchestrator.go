package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"tripstack/internal/config"
	"tripstack/internal/health"
	"tripstack/internal/history"
	"tripstack/internal/manager"
	"tripstack/internal/metrics"
	"tripstack/internal/mongod"
	"tripstack/internal/ollama"
	"tripstack/internal/ports"
	"tripstack/internal/process"
	"tripstack/internal/server"
	"tripstack/internal/shutdown"
)

// Seams for the external daemons, kept narrow so tests can substitute
// fakes for the real provisioners.
type depProvisioner interface {
	Ensure(ctx context.Context) mongod.Status
}

type modelProvisioner interface {
	Ensure(ctx context.Context) error
}

// Orchestrator drives one launch run end to end: port checks, dependency
// and model provisioning, spawning, health verification, steady state and
// teardown. Its own control flow is synchronous; the services it launches
// are independent OS processes.
type Orchestrator struct {
	cfg   *config.RunConfig
	mgr   *manager.Manager
	coord *shutdown.Coordinator

	dep        depProvisioner
	model      modelProvisioner
	poller     health.Poller
	checkPorts func([]int) error
	specs      func(cacheActive bool) []process.Spec

	// Confirm asks the user whether to continue in degraded mode after a
	// failed model pull. Defaults to a terminal prompt.
	Confirm func(question string) bool

	hist  *history.Store
	runID int64

	mu       sync.Mutex
	state    State
	degraded []string
}

func New(cfg *config.RunConfig) *Orchestrator {
	mgr := manager.New(cfg.ChildEnv, cfg.Log)
	o := &Orchestrator{
		cfg:        cfg,
		mgr:        mgr,
		coord:      shutdown.New(mgr, cfg.Ports()),
		dep:        mongod.NewProvisioner(cfg.MongoPort),
		model:      ollama.NewProvisioner(cfg.OllamaURL, cfg.Model),
		poller:     health.Poller{},
		checkPorts: ports.CheckAll,
		Confirm:    promptConfirm,
		state:      StateInit,
	}
	o.specs = o.serviceSpecs
	if cfg.HistoryPath != "" {
		st, err := history.Open(cfg.HistoryPath)
		if err != nil {
			slog.Warn("history store unavailable", "path", cfg.HistoryPath, "error", err)
		} else {
			o.hist = st
		}
	}
	return o
}

// State returns the current run state and whether the run is degraded.
func (o *Orchestrator) State() (State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, len(o.degraded) > 0
}

// Manager exposes the process registry, read by the status server and by
// tests.
func (o *Orchestrator) Manager() *manager.Manager { return o.mgr }

// Shutdown tears the run down. Safe to call any number of times from any
// goroutine; only the first call does work.
func (o *Orchestrator) Shutdown() { o.coord.Shutdown() }

// Run executes the launch sequence and blocks in steady state until ctx is
// cancelled (interrupt/termination signal). Fatal failures are returned as
// *ExitError carrying the distinct exit code; degraded conditions are
// logged and the run continues.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.hist != nil {
		if id, err := o.hist.BeginRun(ctx); err == nil {
			o.runID = id
		}
		defer o.closeHistory()
	}

	o.reportKeys()

	// 1. Every required port must be free before anything is spawned.
	if err := o.checkPorts(o.cfg.Ports()); err != nil {
		o.event("ports", 0, "conflict", err.Error())
		return &ExitError{Code: ExitPortConflict, Err: err}
	}
	o.setState(StatePortsChecked)

	// 2. Document store, only when caching was requested. Failure here
	// downgrades the run instead of aborting it.
	cacheActive := false
	if o.cfg.CacheEnabled {
		st := o.dep.Ensure(ctx)
		if st.Running {
			cacheActive = true
			o.setState(StateDependenciesReady)
			o.event("mongod", 0, "ready", st.Strategy)
		} else {
			o.degrade("document store unavailable, caching disabled for this run")
			o.setState(StateDependenciesDegraded)
			o.event("mongod", 0, "unavailable", "")
		}
	} else {
		slog.Info("caching disabled, skipping document store")
		o.setState(StateDependenciesReady)
	}

	// 3. Inference daemon and model artifact. The daemon being missing or
	// never becoming ready is hard-fatal; a failed pull may continue in
	// degraded mode with explicit confirmation.
	if err := o.model.Ensure(ctx); err != nil {
		o.event("ollama", 0, "failed", err.Error())
		if errors.Is(err, ollama.ErrBinaryMissing) || errors.Is(err, ollama.ErrUnready) {
			return &ExitError{Code: ExitModelDaemon, Err: err}
		}
		if !o.Confirm(fmt.Sprintf("model setup failed (%v); continue without it?", err)) {
			return &ExitError{Code: ExitModelDaemon, Err: err}
		}
		o.degrade("model artifact unavailable, itinerary generation will fall back")
	} else {
		o.event("ollama", 0, "ready", o.cfg.Model)
	}
	o.setState(StateModelReady)

	// 4. Spawn the application processes in dependency order. A spawn
	// failure is fatal, but whatever already spawned must still be torn
	// down, so the registry is consulted by Shutdown either way.
	if err := o.mgr.StartAll(o.specs(cacheActive)); err != nil {
		o.event("spawn", 0, "failed", err.Error())
		o.coord.Shutdown()
		return &ExitError{Code: ExitGeneric, Err: err}
	}
	o.setState(StateProcessesSpawned)

	// 5. Verify health in spawn order. A slow service degrades the run
	// rather than failing it, unless the API was made mandatory.
	allReady := true
	for _, p := range o.mgr.Processes() {
		spec := p.Spec()
		st := p.Snapshot()
		res := o.poller.WaitReady(ctx, spec.Name, spec.HealthURL)
		if res == health.Ready {
			p.SetState(process.StateReady)
			slog.Info("service ready", "service", spec.Name, "url", spec.HealthURL)
			o.event(spec.Name, st.PID, "ready", spec.HealthURL)
			continue
		}
		allReady = false
		p.SetState(process.StateFailed)
		o.event(spec.Name, st.PID, "health_timeout", spec.HealthURL)
		if spec.Name == ServiceAPI && o.cfg.RequireAPIHealthy {
			o.coord.Shutdown()
			return &ExitError{Code: ExitGeneric,
				Err: fmt.Errorf("%s never became healthy and require_api_healthy is set", spec.Name)}
		}
		o.degrade(fmt.Sprintf("%s did not become ready at %s", spec.Name, spec.HealthURL))
	}
	if allReady {
		o.setState(StateHealthVerified)
	} else {
		o.setState(StateHealthDegraded)
	}

	// 6. Optional local status server for the duration of the run.
	var statusSrv *http.Server
	if o.cfg.StatusListen != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			slog.Warn("metrics registration failed", "error", err)
		}
		statusSrv = server.NewServer(o.cfg.StatusListen, o.mgr, func() (string, bool) {
			s, d := o.State()
			return string(s), d
		})
		slog.Info("status server listening", "addr", o.cfg.StatusListen)
	}

	o.setState(StateSteadyState)
	_, degraded := o.State()
	slog.Info("stack is up", "degraded", degraded)
	<-ctx.Done()

	o.setState(StateShuttingDown)
	if statusSrv != nil {
		_ = statusSrv.Close()
	}
	o.coord.Shutdown()
	o.setState(StateStopped)
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	slog.Debug("run state", "state", string(s))
	metrics.SetRunState(string(s), stateNames())
}

func (o *Orchestrator) degrade(reason string) {
	o.mu.Lock()
	o.degraded = append(o.degraded, reason)
	o.mu.Unlock()
	slog.Warn("continuing degraded", "reason", reason)
	metrics.SetDegraded(true)
}

func (o *Orchestrator) reportKeys() {
	for key, present := range o.cfg.KeyReport() {
		if present {
			slog.Info("credential configured", "key", key)
		} else {
			slog.Warn("credential missing, dependent lookups will use fallbacks", "key", key)
		}
	}
}

func (o *Orchestrator) event(name string, pid int, status, detail string) {
	if o.hist == nil {
		return
	}
	_ = o.hist.RecordEvent(context.Background(), history.Event{
		RunID: o.runID, Name: name, PID: pid, Status: status, Detail: detail,
	})
}

func (o *Orchestrator) closeHistory() {
	state, degraded := o.State()
	_ = o.hist.FinishRun(context.Background(), o.runID, string(state), degraded)
	_ = o.hist.Close()
}

func promptConfirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
