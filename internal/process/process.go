package process

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is one spawned application service. All state is guarded by mu;
// accessors keep locking internal so callers never hold the lock.
type Process struct {
	spec      Spec
	mu        sync.Mutex
	cmd       *exec.Cmd
	status    Status
	waitDone  chan struct{} // closed by the reaper when cmd.Wait returns
	outCloser io.WriteCloser
	errCloser io.WriteCloser
}

func New(spec Spec) *Process {
	return &Process{spec: spec, status: Status{Name: spec.Name, State: StateStarting}}
}

func (p *Process) Spec() Spec { return p.spec }

// Start spawns the command in its own process group with the given
// environment, routing stdout/stderr to the provided writers (or /dev/null
// when nil). It returns as soon as the child is running; a background
// reaper waits on it so exits are observed and writers closed.
func (p *Process) Start(env []string, outW, errW io.WriteCloser) error {
	cmd := p.spec.BuildCommand()
	if p.spec.WorkDir != "" {
		cmd.Dir = p.spec.WorkDir
	}
	if len(env) > 0 {
		cmd.Env = env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if outW != nil {
		cmd.Stdout = outW
	} else {
		cmd.Stdout, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	if errW != nil {
		cmd.Stderr = errW
	} else {
		cmd.Stderr, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}

	if err := cmd.Start(); err != nil {
		p.mu.Lock()
		p.status.State = StateFailed
		p.status.ExitErr = err
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.outCloser = outW
	p.errCloser = errW
	p.waitDone = make(chan struct{})
	p.status.PID = cmd.Process.Pid
	p.status.Running = true
	p.status.StartedAt = time.Now()
	wd := p.waitDone
	p.mu.Unlock()

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.status.Running = false
		p.status.StoppedAt = time.Now()
		p.status.ExitErr = err
		if p.outCloser != nil {
			_ = p.outCloser.Close()
			p.outCloser = nil
		}
		if p.errCloser != nil {
			_ = p.errCloser.Close()
			p.errCloser = nil
		}
		p.mu.Unlock()
		close(wd)
	}()
	return nil
}

// SetState records a state transition observed by the caller (readiness
// confirmed, probe timed out, terminated).
func (p *Process) SetState(s State) {
	p.mu.Lock()
	p.status.State = s
	p.mu.Unlock()
}

// Snapshot returns a copy of the current status.
func (p *Process) Snapshot() Status {
	p.mu.Lock()
	s := p.status
	p.mu.Unlock()
	return s
}

// Alive probes the child with signal 0.
func (p *Process) Alive() bool {
	p.mu.Lock()
	cmd := p.cmd
	running := p.status.Running
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil || !running {
		return false
	}
	return syscall.Kill(cmd.Process.Pid, 0) == nil
}

// Stop terminates the child's process group: SIGTERM, then SIGKILL if it
// has not exited within wait. A process that is already gone is treated as
// success.
func (p *Process) Stop(wait time.Duration) error {
	p.mu.Lock()
	cmd := p.cmd
	wd := p.waitDone
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		p.SetState(StateStopped)
		return nil
	}
	pid := cmd.Process.Pid
	if !p.Alive() {
		p.SetState(StateStopped)
		return nil
	}
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	if wd != nil {
		select {
		case <-wd:
			// reaped
		case <-time.After(wait):
			_ = syscall.Kill(-pid, syscall.SIGKILL)
			select {
			case <-wd:
			case <-time.After(200 * time.Millisecond):
				// best-effort
			}
		}
	}
	p.SetState(StateStopped)
	return nil
}
