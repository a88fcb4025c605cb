package health

import (
	"context"
	"net/http"
	"time"

	"tripstack/internal/metrics"
)

// Result of a readiness wait. A timeout is an expected outcome, not an
// error: the caller decides whether it degrades or fails the run.
type Result int

const (
	Ready Result = iota
	Timeout
)

func (r Result) String() string {
	if r == Ready {
		return "ready"
	}
	return "timeout"
}

const (
	DefaultMaxAttempts = 30
	DefaultInterval    = 2 * time.Second
)

// Poller probes readiness URLs with bounded retries and fixed backoff.
// The zero value uses the defaults above.
type Poller struct {
	MaxAttempts int
	Interval    time.Duration
	Client      *http.Client
}

// WaitReady probes url until it answers OK-ish or attempts are exhausted.
// Any 2xx or 3xx response counts as ready; connection refused and timeouts
// count as not-yet. The final attempt is evaluated before giving up.
// Context cancellation cuts the wait short and reports Timeout.
func (p Poller) WaitReady(ctx context.Context, name, url string) Result {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		metrics.IncHealthAttempt(name)
		if probe(ctx, client, url) {
			metrics.SetServiceReady(name, true)
			return Ready
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Timeout
		case <-time.After(interval):
		}
	}
	return Timeout
}

func probe(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
