package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{" DEBUG ", slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestChildWritersNoDir(t *testing.T) {
	outW, errW, err := Config{}.ChildWriters("svc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outW != nil || errW != nil {
		t.Fatal("expected nil writers when no dir is configured")
	}
}

func TestChildWritersCreateFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	c := Config{Dir: dir}
	outW, errW, err := c.ChildWriters("api")
	if err != nil {
		t.Fatalf("writers: %v", err)
	}
	if outW == nil || errW == nil {
		t.Fatal("expected writers")
	}
	if _, err := outW.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = outW.Close()
	_ = errW.Close()

	if _, err := os.Stat(filepath.Join(dir, "api.stdout.log")); err != nil {
		t.Fatalf("stdout log missing: %v", err)
	}
}

func TestNewSlogger(t *testing.T) {
	for _, color := range []bool{true, false} {
		l := Config{Level: "debug", Color: color}.NewSlogger()
		if l == nil {
			t.Fatal("nil logger")
		}
		if !l.Enabled(context.Background(), slog.LevelDebug) {
			t.Fatal("debug level not honored")
		}
	}
}
