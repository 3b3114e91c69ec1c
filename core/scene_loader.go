package core

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/multierr"
)

// Scene bundles every calibration constant of a simulation.
type Scene struct {
	Machine    MachineGeometry  `json:"machine"`
	Trajectory TrajectoryConfig `json:"trajectory"`
	Visibility VisibilityConfig `json:"visibility"`
	Sampler    SamplerConfig    `json:"sampler"`
}

// DefaultScene returns the reference gantry, script, sensor and target.
func DefaultScene() Scene {
	return Scene{
		Machine:    DefaultMachineGeometry(),
		Trajectory: DefaultTrajectoryConfig(),
		Visibility: DefaultVisibilityConfig(),
		Sampler:    DefaultSamplerConfig(),
	}
}

// Validate reports every problem in the scene at once.
func (s Scene) Validate() error {
	return multierr.Combine(
		s.Machine.Validate(),
		s.Trajectory.Validate(),
		s.Visibility.Validate(),
		s.Sampler.Validate(),
	)
}

// LoadScene reads a JSON scene from r. Fields absent from the document keep
// their DefaultScene values; a primitives list, when present, replaces the
// default target entirely.
func LoadScene(r io.Reader) (Scene, error) {
	scene := DefaultScene()
	// Decoding into a populated slice reuses its elements, so start empty.
	defaults := scene.Sampler.Primitives
	scene.Sampler.Primitives = nil

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&scene); err != nil {
		return Scene{}, fmt.Errorf("LoadScene: decode failed: %w", err)
	}
	if scene.Sampler.Primitives == nil {
		scene.Sampler.Primitives = defaults
	}
	if err := scene.Validate(); err != nil {
		return Scene{}, fmt.Errorf("LoadScene: %w", err)
	}
	return scene, nil
}
