package process

import (
	"testing"
	"time"
)

func TestStartStop(t *testing.T) {
	p := New(Spec{Name: "demo", Command: "sleep 5"})
	if err := p.Start(nil, nil, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	st := p.Snapshot()
	if !st.Running || st.PID <= 0 {
		t.Fatalf("expected running with pid, got %+v", st)
	}
	if !p.Alive() {
		t.Fatal("expected alive after start")
	}
	if err := p.Stop(2 * time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	st = p.Snapshot()
	if st.Running {
		t.Fatalf("expected stopped, got %+v", st)
	}
	if st.State != StateStopped {
		t.Fatalf("expected state stopped, got %s", st.State)
	}
}

func TestStopAlreadyGoneIsSuccess(t *testing.T) {
	p := New(Spec{Name: "quick", Command: "true"})
	if err := p.Start(nil, nil, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Let it exit on its own.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && p.Alive() {
		time.Sleep(10 * time.Millisecond)
	}
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("stop of exited process must succeed, got %v", err)
	}
	// And again: repeated stops stay quiet.
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestSpawnFailureMarksFailed(t *testing.T) {
	p := New(Spec{Name: "bad", Command: "sleep 1", WorkDir: "/definitely/not/a/dir"})
	if err := p.Start(nil, nil, nil); err == nil {
		t.Fatal("expected spawn failure for missing workdir")
	}
	st := p.Snapshot()
	if st.State != StateFailed {
		t.Fatalf("expected failed state, got %s", st.State)
	}
	if st.Running {
		t.Fatal("failed spawn must not be running")
	}
}

func TestStopNeverStarted(t *testing.T) {
	p := New(Spec{Name: "never", Command: "sleep 1"})
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("stop of never-started process must succeed, got %v", err)
	}
	if st := p.Snapshot(); st.State != StateStopped {
		t.Fatalf("expected stopped, got %s", st.State)
	}
}
