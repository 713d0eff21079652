package pipeline

import "strings"

// Accumulator carries the goal and every completed stage's text forward.
// Text is appended verbatim; nothing is summarized or truncated.
type Accumulator struct {
	goal    string
	outputs []StageOutput
}

// NewAccumulator starts an empty context for goal.
func NewAccumulator(goal string) *Accumulator {
	return &Accumulator{goal: goal}
}

// Append records a completed stage. Outputs must arrive in stage order.
func (a *Accumulator) Append(out StageOutput) {
	a.outputs = append(a.outputs, out)
}

// Outputs returns a copy of the recorded envelopes.
func (a *Accumulator) Outputs() []StageOutput {
	out := make([]StageOutput, len(a.outputs))
	copy(out, a.outputs)
	return out
}

// Goal returns the original client goal.
func (a *Accumulator) Goal() string {
	return a.goal
}

// Context renders every recorded output under its stage heading, in order.
func (a *Accumulator) Context() string {
	var sb strings.Builder
	for i, out := range a.outputs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		label := out.Label
		if label == "" {
			label = string(out.Stage)
		}
		sb.WriteString("## ")
		sb.WriteString(label)
		sb.WriteString("\n\n")
		sb.WriteString(out.Text)
	}
	return sb.String()
}

// Prompt renders the goal followed by the accumulated context.
func (a *Accumulator) Prompt() string {
	ctx := a.Context()
	if ctx == "" {
		return "Client Investment Goal: " + a.goal
	}
	return "Client Investment Goal: " + a.goal + "\n\n" + ctx
}

// Size is the byte length of the rendered prompt.
func (a *Accumulator) Size() int {
	return len(a.Prompt())
}
