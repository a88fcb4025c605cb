package mongod

import (
	"os/exec"
	"strings"
	"testing"
)

func TestDefaultStrategiesOrder(t *testing.T) {
	chain := DefaultStrategies(27017)
	if len(chain) != 4 {
		t.Fatalf("expected 4 strategies, got %d", len(chain))
	}
	want := []string{
		"brew:mongodb-community",
		"systemd:mongod",
		"service:mongod",
		"docker:tripstack-mongo",
	}
	for i, s := range chain {
		if s.Describe() != want[i] {
			t.Fatalf("strategy %d is %q, want %q", i, s.Describe(), want[i])
		}
	}
}

func TestRunIncludesCommandOutputInError(t *testing.T) {
	err := run(exec.Command("sh", "-c", "echo boom >&2; exit 1"))
	if err == nil {
		t.Fatal("expected error from failing command")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error should carry command output: %v", err)
	}
}

func TestRunOK(t *testing.T) {
	if err := run(exec.Command("true")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
