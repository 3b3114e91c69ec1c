// Package advisory talks to a hosted text-generation service that answers
// operator questions about calibration and scanning. It never touches
// simulation state.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingAPIKey is returned when no credential is configured.
	ErrMissingAPIKey = errors.New("API key is missing")
	// ErrEmptyPrompt is returned for blank questions.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrEmptyResponse is returned when the service produced no text.
	ErrEmptyResponse = errors.New("no response generated")
)

// DefaultSystemInstruction frames the service as a scanning and
// calibration expert.
const DefaultSystemInstruction = `You are a senior 3D vision engineer and robotics expert.
Your specialty is hand-eye calibration, point cloud stitching and 5-axis kinematics.
The user is an engineer mounting an RGB-D camera on a 5-axis laser head.

When answering:
1. Be highly technical but clear.
2. Use mathematical notation for transformations (e.g. T_base_tool).
3. Suggest specific algorithms (e.g. Tsai-Lenz for calibration, ICP for refinement).
4. Follow the workflow calibration, trajectory, stitching.`

// Service is an opaque text-in, text-out generator.
type Service interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Guidance asks svc for advice and always returns displayable text: the
// answer, or a line starting with "Error: " describing what went wrong.
func Guidance(ctx context.Context, svc Service, prompt string) string {
	if svc == nil {
		return "Error: " + ErrMissingAPIKey.Error() + ". Please check your API key settings."
	}
	if strings.TrimSpace(prompt) == "" {
		return "Error: " + ErrEmptyPrompt.Error() + "."
	}
	text, err := svc.Generate(ctx, prompt)
	if err != nil {
		return fmt.Sprintf("Error: %v. Please check your API key settings.", err)
	}
	if strings.TrimSpace(text) == "" {
		return "Error: " + ErrEmptyResponse.Error() + "."
	}
	return text
}
