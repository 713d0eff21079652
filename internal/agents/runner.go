package agents

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"advisor/internal/adapters/ai"
	"advisor/internal/metrics"
	"advisor/internal/tools"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

const defaultMaxParallelTools = 4

// ToolSource resolves tool names to implementations.
type ToolSource interface {
	Select(names ...string) ([]tools.Tool, error)
}

// Output is the result of one agent invocation.
type Output struct {
	Text         string
	Partial      bool // turn budget ran out before a final reply
	Turns        int
	ToolCalls    int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Duration     time.Duration
}

// TokensUsed returns prompt plus completion tokens.
func (o *Output) TokensUsed() int {
	return o.InputTokens + o.OutputTokens
}

// Runner drives the model/tool loop for a single role.
type Runner struct {
	provider    ai.ChatProvider
	tools       ToolSource
	costs       *CostTracker
	maxParallel int
	log         *logger.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithCostTracker shares a tracker across invocations.
func WithCostTracker(ct *CostTracker) Option {
	return func(r *Runner) { r.costs = ct }
}

// WithMaxParallelTools caps concurrent tool calls within one turn.
func WithMaxParallelTools(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

// NewRunner creates a runner over a chat backend and a tool source.
func NewRunner(provider ai.ChatProvider, source ToolSource, opts ...Option) *Runner {
	r := &Runner{
		provider:    provider,
		tools:       source,
		costs:       NewCostTracker(),
		maxParallel: defaultMaxParallelTools,
		log:         logger.Get().With("component", "agent_runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Costs returns the tracker the runner records usage into.
func (r *Runner) Costs() *CostTracker {
	return r.costs
}

// Run invokes the role on task until the model replies without tool calls
// or the turn budget is spent. Tool failures are returned to the model as
// text; backend errors, unknown tools and malformed JSON replies are not.
func (r *Runner) Run(ctx context.Context, role Role, task string) (*Output, error) {
	if err := role.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid role %s", role.Name)
	}

	bound, err := r.tools.Select(role.Tools...)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve tools for %s", role.Name)
	}
	byName := make(map[string]tools.Tool, len(bound))
	for _, t := range bound {
		byName[t.Name()] = t
	}

	model, err := r.provider.GetModel(ctx, role.Model)
	if err != nil {
		// Unknown pricing only affects cost accounting.
		r.log.Debugw("model pricing unknown", "model", role.Model, "error", err)
		model = ai.ModelInfo{Name: role.Model}
	}

	log := r.log.With("agent", role.Name, "model", role.Model)
	conv := NewConversation(role.SystemPrompt, task)
	out := &Output{}
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		metrics.AgentTurns.WithLabelValues(role.Name).Observe(float64(out.Turns))
	}()

	for out.Turns < role.MaxTurns {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "%s interrupted after %d turns", role.Name, out.Turns)
		}
		out.Turns++

		resp, err := r.provider.Chat(ctx, ai.ChatRequest{
			Model:      role.Model,
			Messages:   conv.Messages(),
			Tools:      definitions(bound),
			ToolChoice: role.toolChoice(),
			JSONOutput: role.JSONOutput,
		})
		if err != nil {
			metrics.RecordAgentCall(role.Name, role.Model, 0, 0, 0, err)
			return nil, errors.Wrapf(err, "%s model call failed on turn %d", role.Name, out.Turns)
		}

		cost := r.costs.RecordUsage(role.Name, model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		metrics.RecordAgentCall(role.Name, role.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, cost, nil)
		out.InputTokens += resp.Usage.PromptTokens
		out.OutputTokens += resp.Usage.CompletionTokens
		out.CostUSD += cost

		msg := resp.Message
		conv.AddAssistantMessage(msg)

		if !msg.WantsTools() {
			text, err := finalText(role, msg.Content)
			if err != nil {
				return nil, err
			}
			out.Text = text
			log.Debugw("agent finished",
				"turns", out.Turns,
				"tool_calls", out.ToolCalls,
				"tokens", out.TokensUsed(),
				"cost_usd", out.CostUSD,
			)
			return out, nil
		}

		results, err := r.executeTools(ctx, role, byName, msg.ToolCalls)
		if err != nil {
			return nil, err
		}
		for i, call := range msg.ToolCalls {
			conv.AddToolResult(call.ID, call.Function.Name, results[i].Text())
		}
		out.ToolCalls += len(msg.ToolCalls)
	}

	out.Partial = true
	out.Text = conv.LastAssistantText()
	log.Warnw("turn budget exhausted, returning partial output",
		"max_turns", role.MaxTurns,
		"tool_calls", out.ToolCalls,
		"context_tokens", conv.TokenEstimate(),
	)
	return out, nil
}

// executeTools runs every call of one turn concurrently and returns the
// results in call order. An unknown tool aborts the turn before anything runs.
func (r *Runner) executeTools(ctx context.Context, role Role, byName map[string]tools.Tool, calls []ai.ToolCall) ([]tools.Result, error) {
	selected := make([]tools.Tool, len(calls))
	for i, call := range calls {
		t, ok := byName[call.Function.Name]
		if !ok {
			return nil, errors.Wrapf(errors.ErrUnknownTool, "%s requested %q", role.Name, call.Function.Name)
		}
		selected[i] = t
	}

	runID, _ := errors.RunIDFromContext(ctx)
	results := make([]tools.Result, len(calls))

	var g errgroup.Group
	g.SetLimit(r.maxParallel)
	for i, call := range calls {
		g.Go(func() error {
			callCtx := tools.WithCallMeta(ctx, tools.CallMeta{RunID: runID, Stage: role.Name, CallID: call.ID})
			results[i] = r.invoke(callCtx, selected[i], call.Function.Arguments)
			return nil
		})
	}
	// Tool failures travel as Results, so Wait has nothing to report.
	g.Wait()

	return results, nil
}

func (r *Runner) invoke(ctx context.Context, t tools.Tool, arguments string) (res tools.Result) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Errorw("tool panicked", "tool", t.Name(), "panic", p, "stack", string(debug.Stack()))
			res = tools.Fail(tools.KindExternal, "tool %s failed unexpectedly: %v", t.Name(), p)
		}
	}()

	args := json.RawMessage(strings.TrimSpace(arguments))
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return t.Execute(ctx, args)
}

// finalText checks the closing reply against the role's output contract.
func finalText(role Role, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errors.Wrapf(errors.ErrMalformedOutput, "%s returned an empty reply", role.Name)
	}
	if role.JSONOutput && !json.Valid([]byte(unfence(content))) {
		return "", errors.Wrapf(errors.ErrMalformedOutput, "%s reply is not valid JSON", role.Name)
	}
	return content, nil
}

func unfence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func definitions(ts []tools.Tool) []ai.ToolDefinition {
	if len(ts) == 0 {
		return nil
	}
	defs := make([]ai.ToolDefinition, 0, len(ts))
	for _, t := range ts {
		defs = append(defs, ai.NewFunctionTool(t.Name(), t.Description(), t.Parameters()))
	}
	return defs
}
