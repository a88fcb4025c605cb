package mongod

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Strategy is one platform-specific way to bring the document store up.
// The chain takes the first strategy whose start command exists on the
// host; a strategy that starts but fails is caught and the next is tried.
type Strategy interface {
	// Available reports whether this strategy's tooling exists on the host.
	Available() bool
	// Start attempts to bring the daemon up. It returns once the start
	// command finished; readiness is polled separately by the caller.
	Start(ctx context.Context) error
	// Describe returns a short name for logs and DependencyStatus.
	Describe() string
}

// DefaultStrategies returns the chain in preference order: managed service
// manager (Homebrew), systemd, the generic service wrapper, and finally a
// Docker container.
func DefaultStrategies(port int) []Strategy {
	return []Strategy{
		brewService{service: "mongodb-community"},
		systemdService{unit: "mongod"},
		serviceCommand{service: "mongod"},
		dockerContainer{name: "tripstack-mongo", image: "mongo:7", port: port},
	}
}

type brewService struct{ service string }

func (s brewService) Available() bool {
	_, err := exec.LookPath("brew")
	return err == nil
}

func (s brewService) Start(ctx context.Context) error {
	// #nosec G204
	return run(exec.CommandContext(ctx, "brew", "services", "start", s.service))
}

func (s brewService) Describe() string { return "brew:" + s.service }

type systemdService struct{ unit string }

func (s systemdService) Available() bool {
	_, err := exec.LookPath("systemctl")
	return err == nil
}

func (s systemdService) Start(ctx context.Context) error {
	// #nosec G204
	return run(exec.CommandContext(ctx, "systemctl", "start", s.unit))
}

func (s systemdService) Describe() string { return "systemd:" + s.unit }

type serviceCommand struct{ service string }

func (s serviceCommand) Available() bool {
	_, err := exec.LookPath("service")
	return err == nil
}

func (s serviceCommand) Start(ctx context.Context) error {
	// #nosec G204
	return run(exec.CommandContext(ctx, "service", s.service, "start"))
}

func (s serviceCommand) Describe() string { return "service:" + s.service }

// dockerContainer reuses a stopped container from a previous run instead
// of creating a new one each time, so repeated runs do not leak containers.
type dockerContainer struct {
	name  string
	image string
	port  int
}

func (s dockerContainer) Available() bool {
	_, err := exec.LookPath("docker")
	return err == nil
}

func (s dockerContainer) Start(ctx context.Context) error {
	if s.exists(ctx) {
		// #nosec G204
		return run(exec.CommandContext(ctx, "docker", "start", s.name))
	}
	// #nosec G204
	return run(exec.CommandContext(ctx, "docker", "run", "-d",
		"--name", s.name,
		"-p", fmt.Sprintf("%d:27017", s.port),
		s.image))
}

func (s dockerContainer) exists(ctx context.Context) bool {
	// #nosec G204
	out, err := exec.CommandContext(ctx, "docker", "ps", "-a",
		"--filter", "name=^"+s.name+"$",
		"--format", "{{.Names}}").Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == s.name
}

func (s dockerContainer) Describe() string { return "docker:" + s.name }

func run(cmd *exec.Cmd) error {
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
