package api

import (
	"github.com/golang/geo/r3"

	"github.com/signalsfoundry/scanhead-simulator/internal/sim"
	"github.com/signalsfoundry/scanhead-simulator/model"
)

// Vector is a JSON friendly 3-vector.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func vectorFrom(v r3.Vector) Vector {
	return Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// Pose is the sensor position and unit viewing direction in world space.
type Pose struct {
	Position  Vector `json:"position"`
	Direction Vector `json:"direction"`
}

// GetStateRequest asks for a snapshot. Positions are only included on
// request because they grow with the scan.
type GetStateRequest struct {
	IncludePositions bool `json:"include_positions,omitempty"`
}

// WatchStateRequest opens a snapshot stream.
type WatchStateRequest struct {
	IncludePositions bool `json:"include_positions,omitempty"`
}

// State is the renderer-facing view of the session.
type State struct {
	Seq       uint64     `json:"seq"`
	Axes      model.Axes `json:"axes"`
	Pose      Pose       `json:"pose"`
	Phase     string     `json:"phase"`
	Mode      string     `json:"mode"`
	Scanning  bool       `json:"scanning"`
	Paused    bool       `json:"paused,omitempty"`
	RunID     string     `json:"run_id,omitempty"`
	Elapsed   float64    `json:"elapsed_s"`
	Acquired  int        `json:"acquired"`
	CloudSize int        `json:"cloud_size"`
	Coverage  float64    `json:"coverage"`
	Positions []float32  `json:"positions,omitempty"`
}

func stateFrom(st sim.Status) *State {
	return &State{
		Seq:       st.Seq,
		Axes:      st.Axes,
		Pose:      Pose{Position: vectorFrom(st.Pose.Position), Direction: vectorFrom(st.Pose.Direction)},
		Phase:     st.Phase.String(),
		Mode:      st.Mode.String(),
		Scanning:  st.Scanning,
		Paused:    st.Paused,
		RunID:     st.RunID,
		Elapsed:   st.Elapsed,
		Acquired:  st.Acquired,
		CloudSize: st.CloudSize,
		Coverage:  st.Coverage,
		Positions: st.Positions,
	}
}

// Empty is used for requests and responses without fields.
type Empty struct{}

// StartTrajectoryResponse carries the ID of the new run.
type StartTrajectoryResponse struct {
	RunID string `json:"run_id"`
}

// SetAxesRequest moves the platform under manual control.
type SetAxesRequest struct {
	Axes model.Axes `json:"axes"`
}

// SetAxesResponse reports the applied axes and which values were clamped.
type SetAxesResponse struct {
	Axes    model.Axes `json:"axes"`
	Clamped []string   `json:"clamped,omitempty"`
}

// SetScanningRequest toggles point acquisition.
type SetScanningRequest struct {
	Scanning bool `json:"scanning"`
}

// AdviseRequest is an operator question for the advisory service.
type AdviseRequest struct {
	Prompt string `json:"prompt"`
	// IncludeState prefixes the prompt with a short description of the session.
	IncludeState bool `json:"include_state,omitempty"`
}

// AdviseResponse holds displayable text, which starts with "Error: " when
// the advisory service failed.
type AdviseResponse struct {
	Text string `json:"text"`
}
