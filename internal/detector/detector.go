package detector

// Detector is a strategy that determines whether an external daemon is
// already running. Implementations may probe a TCP port or run a command.
// It must be safe for concurrent use.
type Detector interface {
	// Alive returns true if the daemon is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}
