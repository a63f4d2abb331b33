package continuation

type Phase int

const (
	Idle Phase = iota
	Predicting
	Correcting
	Accepted
	Rejected
	Monitoring
	Continuing
	Switching
	Halted
)

var phaseNames = [...]string{
	Idle:       "idle",
	Predicting: "predicting",
	Correcting: "correcting",
	Accepted:   "accepted",
	Rejected:   "rejected",
	Monitoring: "monitoring",
	Continuing: "continuing",
	Switching:  "switching",
	Halted:     "halted",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Reason explains why a branch halted.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonMaxSteps       Reason = "max-steps"
	ReasonMaxArclength   Reason = "max-arclength"
	ReasonParameterBound Reason = "parameter-bound"
	ReasonStepExhausted  Reason = "step-size-exhausted"
	ReasonCancelled      Reason = "cancelled"
	ReasonFailed         Reason = "failed"
)
