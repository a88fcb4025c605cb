package process

import (
	"os/exec"
	"strings"
)

// Spec describes one application service to launch. Specs are defined once
// per run and never mutated.
type Spec struct {
	Name      string   `json:"name"`
	Command   string   `json:"command"`    // command to start the process (shell-aware)
	WorkDir   string   `json:"work_dir"`   // optional working dir
	Env       []string `json:"env"`        // optional extra env (K=V)
	Port      int      `json:"port"`       // port the service binds
	HealthURL string   `json:"health_url"` // readiness probe endpoint
}

// BuildCommand constructs an *exec.Cmd for the given spec.Command.
// It avoids invoking a shell when not necessary, and respects an explicit
// shell invocation already present in the command string (e.g.
// "sh -c 'npm run dev'"), avoiding double-wrapping with another shell.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		// Always use an absolute shell path so PATH overrides in Env
		// cannot break the spawn.
		// #nosec G204
		return exec.Command("/bin/sh", "-c", afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(name, args...)
}

// parseExplicitShell detects patterns like "sh -c <ARG>" or "/bin/sh -c <ARG>"
// at the beginning of cmdStr. It returns (afterCArg, true) when matched,
// stripping one pair of wrapping quotes so redirections inside the script
// still parse.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}
