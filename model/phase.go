package model

// TrajectoryPhase is the segment of the scripted scan path.
type TrajectoryPhase int

const (
	PhaseIdle TrajectoryPhase = iota
	PhaseApproach
	PhaseOrbit
	PhaseReturn
)

func (p TrajectoryPhase) String() string {
	switch p {
	case PhaseApproach:
		return "approach"
	case PhaseOrbit:
		return "orbit"
	case PhaseReturn:
		return "return"
	default:
		return "idle"
	}
}

// ControlMode describes who is driving the axes.
type ControlMode int

const (
	ModeManual ControlMode = iota
	ModeAuto
)

func (m ControlMode) String() string {
	if m == ModeAuto {
		return "auto"
	}
	return "manual"
}
