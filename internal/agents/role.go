package agents

import (
	"advisor/internal/adapters/ai"
	"advisor/pkg/errors"
)

// Role is everything the runner needs to invoke one agent.
type Role struct {
	Name         string        // Stage name; also the metric and log label
	Model        string        // Backend model identifier
	SystemPrompt string        // Rendered instructions
	Tools        []string      // Tool names the model may call, in schema order
	MaxTurns     int           // Model calls allowed before the output is returned as partial
	ToolChoice   ai.ToolChoice // auto or none
	JSONOutput   bool          // Final reply must be a JSON object
}

// Validate checks the role before any model call is made.
func (r Role) Validate() error {
	if r.Name == "" {
		return errors.NewValidationError("name", "must not be empty", r.Name)
	}
	if r.Model == "" {
		return errors.NewValidationError("model", "must not be empty", r.Model)
	}
	if r.MaxTurns <= 0 {
		return errors.NewValidationError("max_turns", "must be positive", r.MaxTurns)
	}
	switch r.ToolChoice {
	case "", ai.ToolChoiceAuto, ai.ToolChoiceNone:
	default:
		return errors.NewValidationError("tool_choice", "must be auto or none", r.ToolChoice)
	}
	return nil
}

func (r Role) toolChoice() ai.ToolChoice {
	if r.ToolChoice == "" {
		return ai.ToolChoiceAuto
	}
	return r.ToolChoice
}
