package launcher

// State is a stage of the launcher lifecycle. States advance strictly in
// declaration order. Failed is reachable from CheckingDeps and
// InstallingDeps on error or interrupt, and from SettingUpDb on interrupt
// only.
type State int

const (
	StateCheckingDeps State = iota
	StateInstallingDeps
	StateSettingUpDb
	StateStartingServices
	StateStabilizing
	StateIdle
	StateShuttingDown
	StateTerminated
	StateFailed
)

var stateNames = [...]string{
	StateCheckingDeps:     "CheckingDeps",
	StateInstallingDeps:   "InstallingDeps",
	StateSettingUpDb:      "SettingUpDb",
	StateStartingServices: "StartingServices",
	StateStabilizing:      "Stabilizing",
	StateIdle:             "Idle",
	StateShuttingDown:     "ShuttingDown",
	StateTerminated:       "Terminated",
	StateFailed:           "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}
