package orchestrator

// State tracks the run as a whole. Only Init, PortsChecked (on conflict)
// and the model step can abort before SteadyState; every other failure
// degrades the run instead.
type State string

const (
	StateInit                 State = "init"
	StatePortsChecked         State = "ports_checked"
	StateDependenciesReady    State = "dependencies_ready"
	StateDependenciesDegraded State = "dependencies_degraded"
	StateModelReady           State = "model_ready"
	StateProcessesSpawned     State = "processes_spawned"
	StateHealthVerified       State = "health_verified"
	StateHealthDegraded       State = "health_degraded"
	StateSteadyState          State = "steady_state"
	StateShuttingDown         State = "shutting_down"
	StateStopped              State = "stopped"
)

// AllStates in transition order, used by the run-state metric gauge.
var AllStates = []State{
	StateInit,
	StatePortsChecked,
	StateDependenciesReady,
	StateDependenciesDegraded,
	StateModelReady,
	StateProcessesSpawned,
	StateHealthVerified,
	StateHealthDegraded,
	StateSteadyState,
	StateShuttingDown,
	StateStopped,
}

func stateNames() []string {
	out := make([]string, len(AllStates))
	for i, s := range AllStates {
		out[i] = string(s)
	}
	return out
}
