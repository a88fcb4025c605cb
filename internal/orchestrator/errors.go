package orchestrator

import "fmt"

// Distinct exit codes for the hard-fatal paths. Everything else that fails
// before steady state exits 1.
const (
	ExitOK           = 0
	ExitGeneric      = 1
	ExitConfig       = 2
	ExitPortConflict = 3
	ExitModelDaemon  = 4
)

// ExitError carries the process exit code for a fatal launch failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("fatal (exit %d): %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }
