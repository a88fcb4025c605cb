package ports

import (
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ConflictError reports a port that is already held by another listener.
// Error() includes the conventional command to identify and free it.
type ConflictError struct {
	Port int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("port %d is already in use; free it with: kill $(lsof -t -i :%d)", e.Port, e.Port)
}

// IsFree reports whether nothing is currently listening on port. It binds
// and immediately releases the port, which is the only reliable check that
// does not depend on external tooling.
func IsFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// CheckAll verifies every required port before anything is spawned and
// fails fast on the first conflict.
func CheckAll(required []int) error {
	for _, p := range required {
		if !IsFree(p) {
			return &ConflictError{Port: p}
		}
	}
	return nil
}

// PIDs returns the processes still listening on port, via lsof. An empty
// result means the port is free or lsof is unavailable; shutdown treats
// both as nothing left to do.
func PIDs(port int) []int {
	// #nosec G204 -- port is an int, no injection surface
	out, err := exec.Command("lsof", "-t", "-i", fmt.Sprintf(":%d", port), "-sTCP:LISTEN").Output()
	if err != nil {
		return nil
	}
	var pids []int
	for _, line := range strings.Fields(string(out)) {
		if pid, err := strconv.Atoi(line); err == nil && pid > 0 {
			pids = append(pids, pid)
		}
	}
	return pids
}

// Free terminates whatever still listens on port: SIGTERM first, then
// SIGKILL for anything that survives the grace period. A process that is
// already gone counts as success.
func Free(port int, grace time.Duration) {
	pids := PIDs(port)
	for _, pid := range pids {
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}
	if len(pids) == 0 {
		return
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if len(PIDs(port)) == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	for _, pid := range PIDs(port) {
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}
