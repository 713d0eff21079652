package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/internal/adapters/ai"
	"advisor/internal/agents"
	"advisor/pkg/errors"
	"advisor/pkg/templates"
)

const profileJSON = `{"client_budget": "$1,000,000", "investment_timeline_years": 15, "risk_tolerance_level": 7, "sector_preferences": "Technology", "investment_strategy": "Growth"}`

const goal = "Invest $1,000,000 over 15 years, Technology sector, risk 7/10, Growth strategy"

const fullReport = `# Investment Recommendation Report

## Executive Summary
Summary.

## Strategic Rationale & Methodology
Rationale.

## Portfolio Recommendation
| Ticker | Weight |

## Security Justifications
1. NVDA

## Risk Disclosure & Monitoring
Risks.

## Conclusion
Regards.`

type call struct {
	role agents.Role
	task string
	ctx  context.Context
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	outputs map[string]*agents.Output
	errs    map[string]error
	hook    func(role agents.Role)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: map[string]*agents.Output{
			string(StageProfile):                {Text: profileJSON, Turns: 1, InputTokens: 100, OutputTokens: 50, CostUSD: 0.01},
			string(StageMarketResearch):         {Text: "RESEARCH: Technology is BULLISH", Turns: 4, ToolCalls: 3},
			string(StageQuantitativeVetting):    {Text: "QUANT: NVDA, MSFT, AAPL", Turns: 9, ToolCalls: 12},
			string(StageQualitativeRiskVetting): {Text: "RISK: NVDA 8/10", Turns: 7, ToolCalls: 6},
			string(StagePortfolioAllocation):    {Text: "ALLOCATION: NVDA 30%", Turns: 5, ToolCalls: 4},
			string(StageReportGeneration):       {Text: fullReport, Turns: 1},
		},
		errs: map[string]error{},
	}
}

func (f *fakeRunner) Run(ctx context.Context, role agents.Role, task string) (*agents.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{role: role, task: task, ctx: ctx})
	hook := f.hook
	out, err := f.outputs[role.Name], f.errs[role.Name]
	f.mu.Unlock()

	if hook != nil {
		hook(role)
	}
	if err != nil {
		return nil, err
	}
	cp := *out
	return &cp, nil
}

func (f *fakeRunner) stages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.role.Name
	}
	return names
}

type recordingSink struct {
	mu       sync.Mutex
	stages   []Stage
	finished []*Run
}

func (s *recordingSink) StageCompleted(_ context.Context, _ string, out StageOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, out.Stage)
	return nil
}

func (s *recordingSink) RunFinished(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, run)
	return nil
}

type failingSink struct{}

func (failingSink) StageCompleted(context.Context, string, StageOutput) error {
	return errors.ErrUnavailable
}

func (failingSink) RunFinished(context.Context, *Run) error { return errors.ErrUnavailable }

type recordingTracker struct {
	mu          sync.Mutex
	captured    []error
	tags        []map[string]string
	breadcrumbs int
}

func (t *recordingTracker) CaptureError(_ context.Context, err error, tags map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.captured = append(t.captured, err)
	t.tags = append(t.tags, tags)
	return nil
}

func (t *recordingTracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (t *recordingTracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.breadcrumbs++
}

func (t *recordingTracker) Flush(context.Context) error { return nil }

func testConfig() Config {
	models := map[Stage]string{}
	for _, d := range Definitions() {
		models[d.Stage] = "gpt-4o-mini"
	}
	return Config{Models: models, Turns: DefaultTurns(), StageTimeout: time.Minute, ContextWarnBytes: 1 << 20}
}

func testTemplates(t *testing.T) *templates.Registry {
	t.Helper()
	reg, err := templates.NewEmbedded(templates.WithAllowedFields(PromptFields...))
	require.NoError(t, err)
	return reg
}

func newOrchestrator(t *testing.T, runner StageRunner, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time {
		return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	})}, opts...)
	o, err := New(testConfig(), runner, testTemplates(t), opts...)
	require.NoError(t, err)
	return o
}

type progressEvent struct {
	percent int
	label   string
}

func TestOrchestrator_RunsAllStagesInOrder(t *testing.T) {
	runner := newFakeRunner()
	sink := &recordingSink{}
	tracker := &recordingTracker{}
	o := newOrchestrator(t, runner, WithEventSink(sink), WithErrorTracker(tracker))

	var progress []progressEvent
	run, err := o.Run(context.Background(), goal, func(p int, label string) {
		progress = append(progress, progressEvent{p, label})
	})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, run.State)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, []string{
		"profile", "market_research", "quantitative_vetting",
		"qualitative_risk_vetting", "portfolio_allocation", "report_generation",
	}, runner.stages())
	require.Len(t, run.Outputs, 6)
	assert.Equal(t, fullReport, run.Report())

	percents := make([]int, len(progress))
	for i, p := range progress {
		percents[i] = p.percent
	}
	assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 100}, percents)
	assert.Equal(t, "Running Client Profile...", progress[0].label)
	assert.Equal(t, "Investment Recommendation Report complete", progress[11].label)

	p := run.Profile()
	require.NotNil(t, p)
	assert.Equal(t, "$1,000,000", p.ClientBudget)
	assert.Equal(t, 15, p.InvestmentTimelineYears)
	assert.Equal(t, 7, p.RiskToleranceLevel)

	assert.Equal(t, []Stage{
		StageProfile, StageMarketResearch, StageQuantitativeVetting,
		StageQualitativeRiskVetting, StagePortfolioAllocation, StageReportGeneration,
	}, sink.stages)
	require.Len(t, sink.finished, 1)
	assert.Empty(t, tracker.captured)
	assert.Equal(t, 6, tracker.breadcrumbs)
	assert.InDelta(t, 0.01, run.TotalCost(), 1e-9)
}

func TestOrchestrator_ContextAccumulatesForward(t *testing.T) {
	runner := newFakeRunner()
	o := newOrchestrator(t, runner)

	_, err := o.Run(context.Background(), goal, nil)
	require.NoError(t, err)

	calls := runner.calls
	require.Len(t, calls, 6)

	for _, c := range calls {
		assert.Contains(t, c.task, goal, c.role.Name)
	}

	// Each stage sees every strictly earlier output and nothing later.
	texts := []string{profileJSON, "RESEARCH:", "QUANT:", "RISK:", "ALLOCATION:"}
	for i, c := range calls {
		for j, text := range texts {
			if j < i {
				assert.Contains(t, c.task, text, "stage %s should see output %d", c.role.Name, j)
			} else {
				assert.NotContains(t, c.task, text, "stage %s should not see output %d", c.role.Name, j)
			}
		}
	}

	allocation := calls[4].task
	assert.Less(t, strings.Index(allocation, "## Client Profile"), strings.Index(allocation, "## Market Research"))
	assert.Less(t, strings.Index(allocation, "## Quantitative Analysis"), strings.Index(allocation, "## Qualitative Risk Assessment"))

	// The decoded profile reaches later system prompts.
	assert.Contains(t, calls[2].role.SystemPrompt, "7/10")
	assert.Contains(t, calls[4].role.SystemPrompt, "$1,000,000")
	assert.Contains(t, calls[1].role.SystemPrompt, "March 2, 2026")
}

func TestOrchestrator_RolesCarryBudgetsAndTools(t *testing.T) {
	runner := newFakeRunner()
	o := newOrchestrator(t, runner)

	_, err := o.Run(context.Background(), goal, nil)
	require.NoError(t, err)

	wantTurns := []int{20, 40, 100, 100, 60, 30}
	for i, c := range runner.calls {
		assert.Equal(t, wantTurns[i], c.role.MaxTurns, c.role.Name)
		assert.Equal(t, "gpt-4o-mini", c.role.Model)
	}

	profileRole := runner.calls[0].role
	assert.Equal(t, ai.ToolChoiceNone, profileRole.ToolChoice)
	assert.True(t, profileRole.JSONOutput)
	assert.Empty(t, profileRole.Tools)

	assert.Equal(t, []string{"general_web_search"}, runner.calls[1].role.Tools)
	assert.Len(t, runner.calls[2].role.Tools, 4)
	assert.Contains(t, runner.calls[3].role.Tools, "search_sec_filings_multiple_risks")
	assert.Contains(t, runner.calls[4].role.Tools, "calculate_portfolio_correlation_matrix")
	assert.Equal(t, []string{"markdown_generator_tool"}, runner.calls[5].role.Tools)
	assert.Contains(t, runner.calls[5].role.SystemPrompt, "- markdown_generator_tool")
}

func TestOrchestrator_ParsedCapitalReachesLaterPrompts(t *testing.T) {
	runner := newFakeRunner()
	o := newOrchestrator(t, runner)

	_, err := o.Run(context.Background(), goal, nil)
	require.NoError(t, err)

	assert.Contains(t, runner.calls[4].role.SystemPrompt, "100% of the client's stated capital ($1,000,000.00)")
	assert.Contains(t, runner.calls[5].task, "add up to the client's capital of $1,000,000.00")

	t.Run("unparseable budget stays free text", func(t *testing.T) {
		runner := newFakeRunner()
		runner.outputs[string(StageProfile)] = &agents.Output{
			Text: `{"client_budget": "a lot", "investment_timeline_years": 15, "risk_tolerance_level": 7, "sector_preferences": "Technology", "investment_strategy": "Growth"}`,
		}
		o := newOrchestrator(t, runner)

		_, err := o.Run(context.Background(), goal, nil)
		require.NoError(t, err)

		assert.Contains(t, runner.calls[4].role.SystemPrompt, "stated capital (a lot)")
		assert.NotContains(t, runner.calls[5].task, "client's capital of")
	})
}

func TestOrchestrator_FailFast(t *testing.T) {
	runner := newFakeRunner()
	cause := errors.Wrap(errors.ErrRateLimitExceeded, "openai API error (429)")
	runner.errs[string(StageQuantitativeVetting)] = cause
	sink := &recordingSink{}
	tracker := &recordingTracker{}
	o := newOrchestrator(t, runner, WithEventSink(sink), WithErrorTracker(tracker))

	var last int
	run, err := o.Run(context.Background(), goal, func(p int, _ string) { last = p })
	require.Error(t, err)

	var serr *StageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, StageQuantitativeVetting, serr.Stage)
	assert.ErrorIs(t, err, errors.ErrStageFailed)
	assert.ErrorIs(t, err, errors.ErrRateLimitExceeded)
	assert.Contains(t, err.Error(), "quantitative_vetting")
	assert.Contains(t, err.Error(), "429")

	require.NotNil(t, run)
	assert.Equal(t, StateFailed, run.State)
	assert.Equal(t, StageQuantitativeVetting, run.FailedStage)
	require.Len(t, run.Outputs, 2)
	assert.Equal(t, StageMarketResearch, run.Outputs[1].Stage)
	assert.Empty(t, run.Report())

	assert.Equal(t, []string{"profile", "market_research", "quantitative_vetting"}, runner.stages())
	assert.Equal(t, 50, last)

	require.Len(t, tracker.captured, 1)
	assert.Equal(t, "quantitative_vetting", tracker.tags[0]["stage"])
	assert.Equal(t, run.ID, tracker.tags[0]["run_id"])
	assert.Equal(t, "rate_limit", tracker.tags[0]["cause"])

	require.Len(t, sink.finished, 1)
	assert.Equal(t, StateFailed, sink.finished[0].State)
}

func TestOrchestrator_MalformedProfileFailsFirstStage(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs[string(StageProfile)] = &agents.Output{Text: `{"client_budget": "$5", "investment_timeline_years": 0, "risk_tolerance_level": 5}`}
	o := newOrchestrator(t, runner)

	run, err := o.Run(context.Background(), goal, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Equal(t, StageProfile, run.FailedStage)
	assert.Empty(t, run.Outputs)
	assert.Len(t, runner.calls, 1)
}

func TestOrchestrator_EmptyGoal(t *testing.T) {
	runner := newFakeRunner()
	o := newOrchestrator(t, runner)

	run, err := o.Run(context.Background(), "   ", nil)
	assert.Nil(t, run)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Empty(t, runner.calls)
}

func TestOrchestrator_CancellationBetweenStages(t *testing.T) {
	runner := newFakeRunner()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var inFlightErr error
	runner.hook = func(role agents.Role) {
		if role.Name == string(StageMarketResearch) {
			cancel()
			inFlightErr = runner.calls[len(runner.calls)-1].ctx.Err()
		}
	}
	o := newOrchestrator(t, runner)

	run, err := o.Run(ctx, goal, nil)
	require.Error(t, err)

	// The in-flight stage is unaffected; the next one never starts.
	assert.NoError(t, inFlightErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageQuantitativeVetting, run.FailedStage)
	assert.Len(t, run.Outputs, 2)
	assert.Equal(t, []string{"profile", "market_research"}, runner.stages())
}

func TestOrchestrator_StageTimeoutBoundsDetachedContext(t *testing.T) {
	runner := newFakeRunner()
	var deadline time.Time
	var hasDeadline bool
	runner.hook = func(role agents.Role) {
		if role.Name == string(StageProfile) {
			deadline, hasDeadline = runner.calls[0].ctx.Deadline()
		}
	}
	o := newOrchestrator(t, runner)

	_, err := o.Run(context.Background(), goal, nil)
	require.NoError(t, err)
	require.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestOrchestrator_PartialOutputContinues(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs[string(StageQualitativeRiskVetting)] = &agents.Output{Text: "RISK: draft", Turns: 100, Partial: true}
	o := newOrchestrator(t, runner)

	run, err := o.Run(context.Background(), goal, nil)
	require.NoError(t, err)

	risk, ok := run.Output(StageQualitativeRiskVetting)
	require.True(t, ok)
	assert.True(t, risk.Partial)
	assert.Contains(t, runner.calls[4].task, "RISK: draft")
}

func TestOrchestrator_SinkFailuresAreIgnored(t *testing.T) {
	o := newOrchestrator(t, newFakeRunner(), WithEventSink(failingSink{}))

	run, err := o.Run(context.Background(), goal, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, run.State)
}

func TestOrchestrator_MissingHeadingsDoNotFail(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs[string(StageReportGeneration)] = &agents.Output{Text: "## Executive Summary\nOnly this."}
	o := newOrchestrator(t, runner)

	run, err := o.Run(context.Background(), goal, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, run.State)
}

func TestOrchestrator_PanicIsStageError(t *testing.T) {
	runner := newFakeRunner()
	runner.hook = func(role agents.Role) {
		if role.Name == string(StagePortfolioAllocation) {
			panic("index out of range")
		}
	}
	o := newOrchestrator(t, runner)

	run, err := o.Run(context.Background(), goal, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInternal)
	assert.Equal(t, StagePortfolioAllocation, run.FailedStage)
	assert.Len(t, run.Outputs, 4)
}

func TestNew_Validation(t *testing.T) {
	t.Run("missing model", func(t *testing.T) {
		cfg := testConfig()
		cfg.Models[StageReportGeneration] = ""
		_, err := New(cfg, newFakeRunner(), testTemplates(t))
		assert.ErrorIs(t, err, errors.ErrConfig)
		assert.Contains(t, err.Error(), "model.report_generation")
	})

	t.Run("zero turns", func(t *testing.T) {
		cfg := testConfig()
		cfg.Turns[StageMarketResearch] = 0
		_, err := New(cfg, newFakeRunner(), testTemplates(t))
		assert.ErrorIs(t, err, errors.ErrConfig)
	})

	t.Run("missing template", func(t *testing.T) {
		_, err := New(testConfig(), newFakeRunner(), missingTemplates{})
		assert.ErrorIs(t, err, errors.ErrConfig)
		assert.Contains(t, err.Error(), "stages/profile/system")
	})

	t.Run("nil runner", func(t *testing.T) {
		_, err := New(testConfig(), nil, testTemplates(t))
		assert.ErrorIs(t, err, errors.ErrConfig)
	})
}

type missingTemplates struct{}

func (missingTemplates) Require(ids ...string) error {
	return errors.Wrapf(errors.ErrNotFound, "missing templates: %s", strings.Join(ids, ", "))
}

func (missingTemplates) Render(string, any) (string, error) { return "", errors.ErrNotFound }
