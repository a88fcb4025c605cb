package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tripstack/internal/config"
	"tripstack/internal/health"
	"tripstack/internal/mongod"
	"tripstack/internal/ollama"
	"tripstack/internal/ports"
	"tripstack/internal/process"
)

type fakeDep struct {
	status mongod.Status
	calls  int
}

func (f *fakeDep) Ensure(_ context.Context) mongod.Status {
	f.calls++
	return f.status
}

type fakeModel struct {
	err   error
	calls int
}

func (f *fakeModel) Ensure(_ context.Context) error {
	f.calls++
	return f.err
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func testConfig(t *testing.T) *config.RunConfig {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.APIPort = freePort(t)
	cfg.BackendPort = freePort(t)
	cfg.FrontendPort = freePort(t)
	cfg.MongoPort = freePort(t)
	cfg.OllamaPort = freePort(t)
	cfg.Log.Dir = "" // discard child output in tests
	return cfg
}

// testOrchestrator wires an orchestrator whose provisioners are fakes and
// whose services are harmless sleeps probed against srv.
func testOrchestrator(t *testing.T, cfg *config.RunConfig, dep *fakeDep, model *fakeModel, healthURL string) *Orchestrator {
	t.Helper()
	o := New(cfg)
	o.dep = dep
	o.model = model
	o.poller = health.Poller{MaxAttempts: 2, Interval: time.Millisecond}
	o.specs = func(cacheActive bool) []process.Spec {
		var specs []process.Spec
		for _, name := range []string{ServiceAPI, ServiceBackend, ServiceFrontend} {
			specs = append(specs, process.Spec{
				Name:      name,
				Command:   "sleep 30",
				HealthURL: healthURL,
			})
		}
		return specs
	}
	t.Cleanup(o.Shutdown)
	return o
}

// runToSteadyState drives Run in the background, waits for SteadyState,
// then cancels to let it finish.
func runToSteadyState(t *testing.T, o *Orchestrator) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx) }()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if s, _ := o.State(); s == StateSteadyState {
			cancel()
			return <-errCh
		}
		select {
		case err := <-errCh:
			t.Fatalf("run ended before steady state: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("never reached steady state")
	return nil
}

func TestRunEverythingAlreadyRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	dep := &fakeDep{status: mongod.Status{Running: true, Strategy: "already-running"}}
	model := &fakeModel{}
	o := testOrchestrator(t, cfg, dep, model, srv.URL)

	if err := runToSteadyState(t, o); err != nil {
		t.Fatalf("run: %v", err)
	}

	if dep.calls != 1 || model.calls != 1 {
		t.Fatalf("provisioners called dep=%d model=%d, want 1 each", dep.calls, model.calls)
	}
	sts := o.Manager().Statuses()
	if len(sts) != 3 {
		t.Fatalf("expected exactly 3 application processes, got %d", len(sts))
	}
	for _, st := range sts {
		if st.State != process.StateStopped {
			t.Fatalf("%s not stopped after run: %s", st.Name, st.State)
		}
	}
	if s, degraded := o.State(); s != StateStopped || degraded {
		t.Fatalf("expected clean stopped run, got state=%s degraded=%v", s, degraded)
	}
}

func TestRunPortConflictAbortsBeforeSpawn(t *testing.T) {
	cfg := testConfig(t)
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.APIPort))
	if err != nil {
		t.Fatalf("occupy port: %v", err)
	}
	defer func() { _ = ln.Close() }()

	dep := &fakeDep{status: mongod.Status{Running: true}}
	model := &fakeModel{}
	o := testOrchestrator(t, cfg, dep, model, "http://127.0.0.1:1/")
	// The guard must see the conflict; IsFree binds all interfaces while
	// the test listener holds loopback only, so check explicitly.
	o.checkPorts = func(required []int) error {
		for _, p := range required {
			if p == cfg.APIPort {
				return &ports.ConflictError{Port: p}
			}
		}
		return nil
	}

	err = o.Run(context.Background())
	var xe *ExitError
	if !errors.As(err, &xe) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if xe.Code != ExitPortConflict {
		t.Fatalf("expected exit code %d, got %d", ExitPortConflict, xe.Code)
	}
	if len(o.Manager().Statuses()) != 0 {
		t.Fatal("no process may be spawned after a port conflict")
	}
	if dep.calls != 0 || model.calls != 0 {
		t.Fatal("provisioners must not run after a port conflict")
	}
}

func TestRunDependencyUnavailableDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.CacheEnabled = true
	dep := &fakeDep{status: mongod.Status{Running: false}}
	o := testOrchestrator(t, cfg, dep, &fakeModel{}, srv.URL)

	if err := runToSteadyState(t, o); err != nil {
		t.Fatalf("run: %v", err)
	}
	_, degraded := o.State()
	if !degraded {
		t.Fatal("expected degraded run when the store cannot start")
	}
	if len(o.Manager().Statuses()) != 3 {
		t.Fatal("degraded cache must not prevent the app processes from spawning")
	}
}

func TestRunModelDaemonFatal(t *testing.T) {
	cfg := testConfig(t)
	model := &fakeModel{err: fmt.Errorf("daemon: %w", ollama.ErrUnready)}
	o := testOrchestrator(t, cfg, &fakeDep{status: mongod.Status{Running: true}}, model, "http://127.0.0.1:1/")

	err := o.Run(context.Background())
	var xe *ExitError
	if !errors.As(err, &xe) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if xe.Code != ExitModelDaemon {
		t.Fatalf("expected exit code %d, got %d", ExitModelDaemon, xe.Code)
	}
	if xe.Code == ExitPortConflict {
		t.Fatal("model daemon failure must be distinct from port conflict")
	}
	if len(o.Manager().Statuses()) != 0 {
		t.Fatal("no process may be spawned after a fatal model step")
	}
}

func TestRunModelPullFailureHonorsConfirm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	pullErr := errors.New("pull model llama3: network down")

	// Declined: fatal.
	o := testOrchestrator(t, cfg, &fakeDep{status: mongod.Status{Running: true}}, &fakeModel{err: pullErr}, srv.URL)
	o.Confirm = func(string) bool { return false }
	err := o.Run(context.Background())
	var xe *ExitError
	if !errors.As(err, &xe) || xe.Code != ExitModelDaemon {
		t.Fatalf("declined confirmation must be fatal, got %v", err)
	}

	// Accepted: degraded continuation.
	cfg2 := testConfig(t)
	o2 := testOrchestrator(t, cfg2, &fakeDep{status: mongod.Status{Running: true}}, &fakeModel{err: pullErr}, srv.URL)
	o2.Confirm = func(string) bool { return true }
	if err := runToSteadyState(t, o2); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, degraded := o2.State(); !degraded {
		t.Fatal("accepted continuation must be flagged degraded")
	}
}

func TestRunHealthTimeoutDegradesNotFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	o := testOrchestrator(t, cfg, &fakeDep{status: mongod.Status{Running: true}}, &fakeModel{}, srv.URL)

	if err := runToSteadyState(t, o); err != nil {
		t.Fatalf("a slow service must degrade, not fail the run: %v", err)
	}
	if _, degraded := o.State(); !degraded {
		t.Fatal("expected degraded run after health timeouts")
	}
}

func TestRunRequireAPIHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.RequireAPIHealthy = true
	o := testOrchestrator(t, cfg, &fakeDep{status: mongod.Status{Running: true}}, &fakeModel{}, srv.URL)

	err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected failure when the API never becomes healthy and require_api_healthy is set")
	}
}

func TestRunCacheDisabledSkipsDependency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.CacheEnabled = false
	dep := &fakeDep{status: mongod.Status{Running: true}}
	o := testOrchestrator(t, cfg, dep, &fakeModel{}, srv.URL)

	if err := runToSteadyState(t, o); err != nil {
		t.Fatalf("run: %v", err)
	}
	if dep.calls != 0 {
		t.Fatalf("dependency provisioning must be skipped when caching is off, got %d calls", dep.calls)
	}
}
