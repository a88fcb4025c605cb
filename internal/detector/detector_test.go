package detector

import (
	"net"
	"testing"
)

func TestCommandDetectorAlive(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{"zero exit means alive", "true", true},
		{"non-zero exit means not alive", "false", false},
		{"shell pipeline", "echo mongod | grep -q mongod", true},
		{"shell pipeline no match", "echo nothing | grep -q mongod", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CommandDetector{Command: tt.command}.Alive()
			if err != nil {
				t.Fatalf("alive: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Alive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTCPDetector(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	if ok, _ := (TCPDetector{Port: port}).Alive(); !ok {
		t.Fatalf("expected port %d alive", port)
	}
	_ = ln.Close()
	if ok, _ := (TCPDetector{Port: port}).Alive(); ok {
		t.Fatalf("expected port %d dead after close", port)
	}
}

func TestDescribe(t *testing.T) {
	if d := (CommandDetector{Command: "pgrep -x mongod"}).Describe(); d != "cmd:pgrep -x mongod" {
		t.Fatalf("unexpected describe %q", d)
	}
	if d := (TCPDetector{Port: 27017}).Describe(); d != "tcp:27017" {
		t.Fatalf("unexpected describe %q", d)
	}
}
