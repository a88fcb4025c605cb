package process

import "time"

// State is the last-known lifecycle state of a managed process.
type State string

const (
	StateStarting State = "starting" // spawned, readiness not yet confirmed
	StateReady    State = "ready"    // readiness probe succeeded
	StateFailed   State = "failed"   // spawn failed or readiness timed out
	StateStopped  State = "stopped"  // terminated by shutdown or exited
)

// Status is a point-in-time snapshot of a managed process.
type Status struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	State     State     `json:"state"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	ExitErr   error     `json:"-"`
}
