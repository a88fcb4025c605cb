package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Fatal conditions surfaced to the orchestrating sequence. ErrBinaryMissing
// and ErrUnready abort the run; a failed pull is fatal for this step but
// the caller may still choose a degraded continuation.
var (
	ErrBinaryMissing = errors.New("ollama binary not found on PATH")
	ErrUnready       = errors.New("ollama daemon did not become ready")
)

const (
	DefaultPollAttempts = 30
	DefaultPollInterval = 2 * time.Second
)

// Provisioner guarantees the local inference daemon is reachable and the
// required model artifact is present, pulling it when absent.
type Provisioner struct {
	Binary string // control binary, normally "ollama"
	URL    string // daemon control endpoint, e.g. http://127.0.0.1:11434
	Model  string

	PollAttempts int
	PollInterval time.Duration
	Client       *http.Client
}

func NewProvisioner(url, model string) *Provisioner {
	return &Provisioner{Binary: "ollama", URL: strings.TrimRight(url, "/"), Model: model}
}

// Ensure brings the daemon up (launching it in the background when it is
// not already responding) and makes sure the model is present.
func (p *Provisioner) Ensure(ctx context.Context) error {
	if _, err := exec.LookPath(p.Binary); err != nil {
		return fmt.Errorf("%w: install it from https://ollama.com/download", ErrBinaryMissing)
	}

	if !p.alive(ctx) {
		slog.Info("inference daemon not responding, launching", "binary", p.Binary)
		if err := p.launch(); err != nil {
			return fmt.Errorf("launch %s serve: %w", p.Binary, err)
		}
		if !p.waitReady(ctx) {
			return fmt.Errorf("%w after %d attempts", ErrUnready, p.pollAttempts())
		}
	} else {
		slog.Info("inference daemon already running", "url", p.URL)
	}

	present, err := p.hasModel(ctx)
	if err != nil {
		return fmt.Errorf("query model inventory: %w", err)
	}
	if present {
		slog.Info("model present", "model", p.Model)
		return nil
	}

	slog.Info("model absent, pulling (this can take a while)", "model", p.Model)
	if err := p.pull(ctx); err != nil {
		return fmt.Errorf("pull model %s: %w", p.Model, err)
	}
	return nil
}

// alive checks the daemon's version endpoint.
func (p *Provisioner) alive(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// launch starts "ollama serve" detached in its own process group. The
// daemon is left running across launches on purpose: repeated runs find
// it already responding and reuse it.
func (p *Provisioner) launch() error {
	// #nosec G204
	cmd := exec.Command(p.Binary, "serve")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	null, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	cmd.Stdout = null
	cmd.Stderr = null
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap in the background so a daemon exit does not leave a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}

func (p *Provisioner) waitReady(ctx context.Context) bool {
	attempts := p.pollAttempts()
	interval := p.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for i := 1; i <= attempts; i++ {
		if p.alive(ctx) {
			return true
		}
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
	return false
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// hasModel checks the daemon's inventory. "llama3" matches both "llama3"
// and "llama3:latest".
func (p *Provisioner) hasModel(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("inventory returned status %d", resp.StatusCode)
	}
	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, err
	}
	want := p.Model
	for _, m := range tags.Models {
		if m.Name == want || strings.TrimSuffix(m.Name, ":latest") == want {
			return true, nil
		}
	}
	return false, nil
}

// pull blocks until the model download finishes.
func (p *Provisioner) pull(ctx context.Context) error {
	// #nosec G204
	cmd := exec.CommandContext(ctx, p.Binary, "pull", p.Model)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (p *Provisioner) pollAttempts() int {
	if p.PollAttempts > 0 {
		return p.PollAttempts
	}
	return DefaultPollAttempts
}

func (p *Provisioner) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{Timeout: 3 * time.Second}
}
