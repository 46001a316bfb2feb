package camera

import (
	"fmt"
	"strings"
)

// ControlType is the user's camera control mode.
type ControlType int

const (
	// ControlUnset in a Request means "restore whatever was active before".
	ControlUnset ControlType = iota
	ControlMap
	ControlOrbit
	ControlDisabled
)

func (c ControlType) String() string {
	switch c {
	case ControlMap:
		return "map"
	case ControlOrbit:
		return "orbit"
	case ControlDisabled:
		return "disabled"
	default:
		return "unset"
	}
}

// ParseControl parses "map", "orbit" or "disabled".
func ParseControl(s string) (ControlType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "map":
		return ControlMap, nil
	case "orbit":
		return ControlOrbit, nil
	case "disabled":
		return ControlDisabled, nil
	}
	return ControlUnset, fmt.Errorf("unknown control mode %q", s)
}

// Phase is the logical scene the camera belongs to.
type Phase int

const (
	// PhaseUnset in a Request keeps the phase that was active before.
	PhaseUnset Phase = iota
	PhaseMain
	PhaseSub
	PhaseTransition
)

func (p Phase) String() string {
	switch p {
	case PhaseMain:
		return "main"
	case PhaseSub:
		return "sub"
	case PhaseTransition:
		return "transition"
	default:
		return "unset"
	}
}

// State is the coordinator's view of the camera.
type State struct {
	Pose        Pose
	Previous    Pose
	HasPrevious bool
	Control     ControlType
	Animating   bool
	Loading     bool
	Phase       Phase
}
