package pipeline

import (
	"fmt"
	"time"

	"advisor/internal/domain/profile"
	"advisor/pkg/errors"
)

// State is the lifecycle of a run.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// StageOutput is the envelope around one stage's text.
type StageOutput struct {
	Stage      Stage
	Label      string
	Text       string
	Timestamp  time.Time
	Duration   time.Duration
	Turns      int
	ToolCalls  int
	TokensUsed int
	CostUSD    float64
	Partial    bool             // turn budget ran out; Text is the last draft
	Profile    *profile.Profile // set on the profile stage only
}

// Run is the ephemeral record of one goal submission.
type Run struct {
	ID          string
	Goal        string
	State       State
	Outputs     []StageOutput
	FailedStage Stage
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Output returns the envelope of a completed stage.
func (r *Run) Output(s Stage) (StageOutput, bool) {
	for _, o := range r.Outputs {
		if o.Stage == s {
			return o, true
		}
	}
	return StageOutput{}, false
}

// Report returns the final report text, empty until the run completes.
func (r *Run) Report() string {
	if r.State != StateCompleted {
		return ""
	}
	out, _ := r.Output(StageReportGeneration)
	return out.Text
}

// Profile returns the decoded client profile once the first stage has run.
func (r *Run) Profile() *profile.Profile {
	out, ok := r.Output(StageProfile)
	if !ok {
		return nil
	}
	return out.Profile
}

// TotalCost sums the spend of every completed stage.
func (r *Run) TotalCost() float64 {
	var total float64
	for _, o := range r.Outputs {
		total += o.CostUSD
	}
	return total
}

// StageError reports which stage aborted a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap exposes both the cause and ErrStageFailed to errors.Is.
func (e *StageError) Unwrap() []error {
	return []error{errors.ErrStageFailed, e.Err}
}
