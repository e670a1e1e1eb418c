package train

// State is a phase of a training run.
type State int

// Run phases. Init leads to Resuming or Fresh; both lead to RunningEpoch,
// which alternates with Checkpointing until Done.
const (
	Init State = iota
	Fresh
	Resuming
	RunningEpoch
	Checkpointing
	Done
)

var stateNames = [...]string{
	Init:          "init",
	Fresh:         "fresh",
	Resuming:      "resuming",
	RunningEpoch:  "running_epoch",
	Checkpointing: "checkpointing",
	Done:          "done",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
