package pipeline

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"advisor/internal/agents"
	"advisor/internal/domain/profile"
	"advisor/internal/metrics"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

const sinkTimeout = 10 * time.Second

// StageRunner invokes one agent role.
type StageRunner interface {
	Run(ctx context.Context, role agents.Role, task string) (*agents.Output, error)
}

// Templates renders stage prompts by ID.
type Templates interface {
	Require(ids ...string) error
	Render(id string, data any) (string, error)
}

// ProgressFunc receives a monotonically increasing percent and a status line.
type ProgressFunc func(percent int, label string)

// EventSink observes stage completions and the end of a run.
// Sink failures are logged and never abort the pipeline.
type EventSink interface {
	StageCompleted(ctx context.Context, runID string, out StageOutput) error
	RunFinished(ctx context.Context, run *Run) error
}

// PromptData is what stage templates may reference.
type PromptData struct {
	Goal    string
	Context string
	Profile *profile.Profile
	Capital string // parsed client budget, e.g. "$1,000,000.00"; empty when unparseable
	Stage   string
	Tools   []string
	Date    string
}

// PromptFields lists the PromptData fields templates are allowed to use.
var PromptFields = []string{"Goal", "Context", "Profile", "Capital", "Stage", "Tools", "Date"}

// Orchestrator runs the six stages in order, feeding each the output of
// all earlier ones.
type Orchestrator struct {
	cfg       Config
	runner    StageRunner
	templates Templates
	sinks     []EventSink
	tracker   errors.Tracker
	now       func() time.Time
	log       *logger.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventSink adds a sink that receives stage envelopes.
func WithEventSink(sink EventSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sinks = append(o.sinks, sink)
		}
	}
}

// WithErrorTracker reports stage failures to an error tracker.
func WithErrorTracker(tracker errors.Tracker) Option {
	return func(o *Orchestrator) { o.tracker = tracker }
}

// WithClock overrides the time source used for timestamps and prompt dates.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New validates the configuration and the prompt templates up front.
func New(cfg Config, runner StageRunner, templates Templates, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(errors.ErrConfig, "pipeline config: %v", err)
	}
	if runner == nil {
		return nil, errors.Wrap(errors.ErrConfig, "stage runner is required")
	}
	if templates == nil {
		return nil, errors.Wrap(errors.ErrConfig, "templates are required")
	}
	if err := templates.Require(TemplateIDs()...); err != nil {
		return nil, errors.Wrapf(errors.ErrConfig, "stage templates: %v", err)
	}

	o := &Orchestrator{
		cfg:       cfg,
		runner:    runner,
		templates: templates,
		now:       time.Now,
		log:       logger.Get().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes the pipeline for goal. On failure the returned Run is still
// populated with every stage that completed, alongside a *StageError.
// Cancelling ctx stops the pipeline before the next stage; a stage that is
// already running finishes or hits the stage timeout.
func (o *Orchestrator) Run(ctx context.Context, goal string, progress ProgressFunc) (*Run, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, errors.NewValidationError("goal", "must not be empty", goal)
	}
	if progress == nil {
		progress = func(int, string) {}
	}

	run := &Run{
		ID:        uuid.NewString(),
		Goal:      goal,
		State:     StateRunning,
		StartedAt: o.now(),
	}
	ctx = errors.WithRunID(ctx, run.ID)
	log := o.log.WithRun(ctx)
	log.Infow("pipeline started", "goal_bytes", len(goal))

	acc := NewAccumulator(goal)
	var (
		prof    *profile.Profile
		capital string
	)

	for _, def := range definitions {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, run, def.Stage, errors.Wrap(err, "cancelled before stage start"))
		}

		progress(def.ProgressStart, "Running "+def.Label+"...")

		out, err := o.runStage(ctx, def, acc, prof, capital)
		if err != nil {
			return o.fail(ctx, run, def.Stage, err)
		}
		if out.Profile != nil {
			prof = out.Profile
			capital = clientCapital(log, prof)
		}

		acc.Append(out)
		run.Outputs = append(run.Outputs, out)
		o.stageCompleted(ctx, run.ID, out)

		progress(def.ProgressEnd, def.Label+" complete")
	}

	run.State = StateCompleted
	run.FinishedAt = o.now()
	metrics.PipelineRuns.WithLabelValues(string(StateCompleted)).Inc()

	if missing := MissingHeadings(run.Report()); len(missing) > 0 {
		metrics.ReportHeadingsMissing.Add(float64(len(missing)))
		log.Warnw("report is missing mandated headings", "missing", missing)
	}

	log.Infow("pipeline completed",
		"stages", len(run.Outputs),
		"cost_usd", run.TotalCost(),
		"duration", run.FinishedAt.Sub(run.StartedAt).String(),
	)
	o.runFinished(ctx, run)
	return run, nil
}

func (o *Orchestrator) runStage(ctx context.Context, def Definition, acc *Accumulator, prof *profile.Profile, capital string) (StageOutput, error) {
	log := o.log.WithRun(ctx).With("stage", def.Stage)

	data := PromptData{
		Goal:    acc.Goal(),
		Context: acc.Context(),
		Profile: prof,
		Capital: capital,
		Stage:   def.Label,
		Tools:   def.Tools,
		Date:    o.now().Format("January 2, 2006"),
	}
	system, err := o.templates.Render(def.SystemTemplate(), data)
	if err != nil {
		return StageOutput{}, errors.Wrap(err, "render system prompt")
	}
	task, err := o.templates.Render(def.TaskTemplate(), data)
	if err != nil {
		return StageOutput{}, errors.Wrap(err, "render task prompt")
	}

	size := acc.Size()
	metrics.ContextBytes.WithLabelValues(string(def.Stage)).Set(float64(size))
	if o.cfg.ContextWarnBytes > 0 && size > o.cfg.ContextWarnBytes {
		log.Warnw("accumulated context is large",
			"size", humanize.Bytes(uint64(size)),
			"threshold", humanize.Bytes(uint64(o.cfg.ContextWarnBytes)),
		)
	}

	role := agents.Role{
		Name:         string(def.Stage),
		Model:        o.cfg.Models[def.Stage],
		SystemPrompt: system,
		Tools:        def.Tools,
		MaxTurns:     o.cfg.Turns[def.Stage],
		ToolChoice:   def.ToolChoice,
		JSONOutput:   def.JSONOutput,
	}

	// The stage keeps running if the caller cancels; only the timeout stops it.
	stageCtx := context.WithoutCancel(ctx)
	if o.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, o.cfg.StageTimeout)
		defer cancel()
	}

	log.Infow("stage started", "model", role.Model, "max_turns", role.MaxTurns, "context_bytes", size)
	start := time.Now()
	res, err := o.invoke(stageCtx, role, task)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordStage(string(def.Stage), "error", duration)
		return StageOutput{}, err
	}

	out := StageOutput{
		Stage:      def.Stage,
		Label:      def.Label,
		Text:       res.Text,
		Timestamp:  o.now(),
		Duration:   duration,
		Turns:      res.Turns,
		ToolCalls:  res.ToolCalls,
		TokensUsed: res.TokensUsed(),
		CostUSD:    res.CostUSD,
		Partial:    res.Partial,
	}

	if def.Stage == StageProfile {
		p, err := profile.Parse(res.Text)
		if err != nil {
			metrics.RecordStage(string(def.Stage), "error", duration)
			return StageOutput{}, errors.Wrap(err, "client profile")
		}
		out.Profile = &p
	}

	status := "success"
	if out.Partial {
		status = "partial"
		log.Warnw("stage used its whole turn budget", "turns", out.Turns)
	}
	metrics.RecordStage(string(def.Stage), status, duration)

	log.Infow("stage completed",
		"status", status,
		"turns", out.Turns,
		"tool_calls", out.ToolCalls,
		"tokens", out.TokensUsed,
		"cost_usd", out.CostUSD,
		"output_bytes", len(out.Text),
		"duration", duration.String(),
	)
	return out, nil
}

func (o *Orchestrator) invoke(ctx context.Context, role agents.Role, task string) (out *agents.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorw("stage panicked", "stage", role.Name, "panic", r, "stack", string(debug.Stack()))
			out, err = nil, errors.Wrapf(errors.ErrInternal, "stage %s panicked: %v", role.Name, r)
		}
	}()
	return o.runner.Run(ctx, role, task)
}

func (o *Orchestrator) fail(ctx context.Context, run *Run, stage Stage, cause error) (*Run, error) {
	serr := &StageError{Stage: stage, Err: cause}
	run.State = StateFailed
	run.FailedStage = stage
	run.Err = serr
	run.FinishedAt = o.now()

	metrics.PipelineRuns.WithLabelValues(string(StateFailed)).Inc()
	o.log.Errorw("pipeline failed",
		"run_id", run.ID,
		"stage", stage,
		"completed_stages", len(run.Outputs),
		"cause", errors.Category(cause),
		"error", cause,
	)

	if o.tracker != nil {
		tags := map[string]string{
			"component": "pipeline",
			"stage":     string(stage),
			"run_id":    run.ID,
			"cause":     errors.Category(cause),
		}
		if err := o.tracker.CaptureError(context.WithoutCancel(ctx), serr, tags); err != nil {
			o.log.Warnw("failed to report stage error", "error", err)
		}
	}

	o.runFinished(ctx, run)
	return run, serr
}

func (o *Orchestrator) stageCompleted(ctx context.Context, runID string, out StageOutput) {
	if o.tracker != nil {
		o.tracker.AddBreadcrumb(ctx, "stage "+string(out.Stage)+" completed", "pipeline", errors.LevelInfo, map[string]interface{}{
			"turns":      out.Turns,
			"tool_calls": out.ToolCalls,
			"partial":    out.Partial,
		})
	}
	for _, sink := range o.sinks {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if err := sink.StageCompleted(sinkCtx, runID, out); err != nil {
			o.log.Warnw("event sink rejected stage output", "stage", out.Stage, "error", err)
		}
		cancel()
	}
}

func (o *Orchestrator) runFinished(ctx context.Context, run *Run) {
	for _, sink := range o.sinks {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if err := sink.RunFinished(sinkCtx, run); err != nil {
			o.log.Warnw("event sink rejected run result", "run_id", run.ID, "error", err)
		}
		cancel()
	}
}

// clientCapital formats the profile budget for later prompts. A budget the
// parser cannot read is left to the model as free text.
func clientCapital(log *logger.Logger, p *profile.Profile) string {
	amount, err := p.Budget()
	if err != nil {
		log.Warnw("client budget not parsed, later stages see it as text", "budget", p.ClientBudget, "error", err)
		return ""
	}
	log.Infow("client capital", "capital_usd", amount.StringFixed(2))
	return "$" + humanize.FormatFloat("#,###.##", amount.InexactFloat64())
}
