package agents

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/internal/adapters/ai"
	"advisor/internal/tools"
	"advisor/internal/tools/middleware"
	"advisor/pkg/errors"
)

type scriptedProvider struct {
	mu        sync.Mutex
	replies   []ai.Message
	err       error
	requests  []ai.ChatRequest
	callCount int
}

func (p *scriptedProvider) Name() string        { return "scripted" }
func (p *scriptedProvider) SupportsTools() bool { return true }

func (p *scriptedProvider) GetModel(_ context.Context, model string) (ai.ModelInfo, error) {
	return ai.ModelInfo{Name: model, InputCostPer1K: 1, OutputCostPer1K: 2}, nil
}

func (p *scriptedProvider) ListModels(context.Context) ([]ai.ModelInfo, error) { return nil, nil }

func (p *scriptedProvider) Chat(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := make([]ai.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	p.requests = append(p.requests, req)

	if p.err != nil {
		return nil, p.err
	}
	idx := p.callCount
	if idx >= len(p.replies) {
		idx = len(p.replies) - 1
	}
	p.callCount++
	return &ai.ChatResponse{
		Message: p.replies[idx],
		Usage:   ai.Usage{PromptTokens: 1000, CompletionTokens: 500},
	}, nil
}

func toolCall(id, name, args string) ai.ToolCall {
	return ai.ToolCall{ID: id, Function: ai.FunctionCall{Name: name, Arguments: args}}
}

func echoTool(name string, delay time.Duration) tools.Tool {
	type echoArgs struct {
		Value string `json:"value"`
	}
	return tools.Typed(name, "echoes value", tools.Object(nil), func(ctx context.Context, args echoArgs) tools.Result {
		time.Sleep(delay)
		if args.Value == "bad" {
			return tools.Fail(tools.KindNotFound, "no data for %s", args.Value)
		}
		return tools.OK(name + ":" + args.Value)
	})
}

func newRegistry(ts ...tools.Tool) *tools.Registry {
	reg := tools.NewRegistry()
	if err := reg.Register(ts...); err != nil {
		panic(err)
	}
	return reg
}

func TestRunner_NoTools(t *testing.T) {
	p := &scriptedProvider{replies: []ai.Message{{Role: ai.RoleAssistant, Content: "final answer"}}}
	r := NewRunner(p, newRegistry())

	out, err := r.Run(context.Background(), Role{Name: "market_research", Model: "gpt-4o", SystemPrompt: "sys", MaxTurns: 3}, "task")
	require.NoError(t, err)

	assert.Equal(t, "final answer", out.Text)
	assert.False(t, out.Partial)
	assert.Equal(t, 1, out.Turns)
	assert.Equal(t, 1500, out.TokensUsed())
	assert.InDelta(t, 2.0, out.CostUSD, 1e-9)

	require.Len(t, p.requests, 1)
	assert.Equal(t, ai.RoleSystem, p.requests[0].Messages[0].Role)
	assert.Equal(t, "task", p.requests[0].Messages[1].Content)
	assert.Equal(t, ai.ToolChoiceAuto, p.requests[0].ToolChoice)
	assert.Nil(t, p.requests[0].Tools)
}

func TestRunner_ToolResultsInCallOrder(t *testing.T) {
	p := &scriptedProvider{replies: []ai.Message{
		{ToolCalls: []ai.ToolCall{
			toolCall("c1", "slow", `{"value":"a"}`),
			toolCall("c2", "fast", `{"value":"b"}`),
			toolCall("c3", "fast", `{"value":"bad"}`),
		}},
		{Content: "done"},
	}}
	reg := newRegistry(echoTool("slow", 50*time.Millisecond), echoTool("fast", 0))
	r := NewRunner(p, reg, WithMaxParallelTools(3))

	out, err := r.Run(context.Background(), Role{Name: "quantitative_vetting", Model: "m", Tools: []string{"slow", "fast"}, MaxTurns: 5}, "task")
	require.NoError(t, err)
	assert.Equal(t, "done", out.Text)
	assert.Equal(t, 3, out.ToolCalls)
	assert.Equal(t, 2, out.Turns)

	require.Len(t, p.requests, 2)
	second := p.requests[1].Messages
	require.Len(t, second, 6) // system, user, assistant, 3 tool results
	assert.Equal(t, "c1", second[3].ToolCallID)
	assert.Equal(t, "slow:a", second[3].Content)
	assert.Equal(t, "c2", second[4].ToolCallID)
	assert.Equal(t, "fast:b", second[4].Content)
	assert.Equal(t, "ERROR: no data for bad", second[5].Content)

	require.Len(t, p.requests[0].Tools, 2)
	assert.Equal(t, "slow", p.requests[0].Tools[0].Function.Name)
}

func TestRunner_ToolsRunConcurrently(t *testing.T) {
	var inFlight, peak int32
	gate := tools.New("gate", "", nil, func(ctx context.Context, _ json.RawMessage) tools.Result {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return tools.OK("ok")
	})

	p := &scriptedProvider{replies: []ai.Message{
		{ToolCalls: []ai.ToolCall{toolCall("1", "gate", ""), toolCall("2", "gate", ""), toolCall("3", "gate", "")}},
		{Content: "done"},
	}}
	r := NewRunner(p, newRegistry(gate), WithMaxParallelTools(2))

	_, err := r.Run(context.Background(), Role{Name: "s", Model: "m", Tools: []string{"gate"}, MaxTurns: 2}, "task")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestRunner_BudgetExhaustedIsPartial(t *testing.T) {
	p := &scriptedProvider{replies: []ai.Message{
		{Content: "draft findings", ToolCalls: []ai.ToolCall{toolCall("1", "fast", `{"value":"x"}`)}},
		{ToolCalls: []ai.ToolCall{toolCall("2", "fast", `{"value":"y"}`)}},
	}}
	r := NewRunner(p, newRegistry(echoTool("fast", 0)))

	out, err := r.Run(context.Background(), Role{Name: "s", Model: "m", Tools: []string{"fast"}, MaxTurns: 3}, "task")
	require.NoError(t, err)
	assert.True(t, out.Partial)
	assert.Equal(t, 3, out.Turns)
	assert.Equal(t, "draft findings", out.Text)
	assert.Len(t, p.requests, 3)
}

func TestRunner_Errors(t *testing.T) {
	t.Run("backend error", func(t *testing.T) {
		p := &scriptedProvider{err: errors.Wrap(errors.ErrUnavailable, "boom")}
		r := NewRunner(p, newRegistry())
		_, err := r.Run(context.Background(), Role{Name: "s", Model: "m", MaxTurns: 1}, "task")
		assert.ErrorIs(t, err, errors.ErrUnavailable)
	})

	t.Run("unknown tool", func(t *testing.T) {
		p := &scriptedProvider{replies: []ai.Message{{ToolCalls: []ai.ToolCall{toolCall("1", "delete_everything", "{}")}}}}
		r := NewRunner(p, newRegistry(echoTool("fast", 0)))
		_, err := r.Run(context.Background(), Role{Name: "s", Model: "m", Tools: []string{"fast"}, MaxTurns: 2}, "task")
		assert.ErrorIs(t, err, errors.ErrUnknownTool)
	})

	t.Run("unregistered role tool", func(t *testing.T) {
		r := NewRunner(&scriptedProvider{}, newRegistry())
		_, err := r.Run(context.Background(), Role{Name: "s", Model: "m", Tools: []string{"missing"}, MaxTurns: 2}, "task")
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("malformed json", func(t *testing.T) {
		p := &scriptedProvider{replies: []ai.Message{{Content: "budget is one million"}}}
		r := NewRunner(p, newRegistry())
		_, err := r.Run(context.Background(), Role{Name: "profile", Model: "m", MaxTurns: 1, JSONOutput: true, ToolChoice: ai.ToolChoiceNone}, "task")
		assert.ErrorIs(t, err, errors.ErrMalformedOutput)
		assert.Equal(t, ai.ToolChoiceNone, p.requests[0].ToolChoice)
		assert.True(t, p.requests[0].JSONOutput)
	})

	t.Run("fenced json accepted", func(t *testing.T) {
		p := &scriptedProvider{replies: []ai.Message{{Content: "```json\n{\"a\":1}\n```"}}}
		r := NewRunner(p, newRegistry())
		out, err := r.Run(context.Background(), Role{Name: "profile", Model: "m", MaxTurns: 1, JSONOutput: true}, "task")
		require.NoError(t, err)
		assert.Contains(t, out.Text, `"a":1`)
	})

	t.Run("invalid role", func(t *testing.T) {
		r := NewRunner(&scriptedProvider{}, newRegistry())
		_, err := r.Run(context.Background(), Role{Name: "s", Model: "m"}, "task")
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &scriptedProvider{replies: []ai.Message{{Content: "x"}}}
		_, err := NewRunner(p, newRegistry()).Run(ctx, Role{Name: "s", Model: "m", MaxTurns: 1}, "task")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, p.requests)
	})
}

func TestRunner_ToolPanicBecomesResult(t *testing.T) {
	boom := tools.New("boom", "", nil, func(context.Context, json.RawMessage) tools.Result {
		panic("nil map")
	})
	p := &scriptedProvider{replies: []ai.Message{
		{ToolCalls: []ai.ToolCall{toolCall("1", "boom", "{}")}},
		{Content: "recovered"},
	}}
	out, err := NewRunner(p, newRegistry(boom)).Run(context.Background(), Role{Name: "s", Model: "m", Tools: []string{"boom"}, MaxTurns: 2}, "task")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out.Text)
	history := p.requests[1].Messages
	require.Len(t, history, 3)
	assert.Equal(t, ai.RoleTool, history[2].Role)
	assert.Contains(t, history[2].Content, "ERROR: tool boom failed unexpectedly: nil map")
}

func TestRunner_ToolPanicUnderTimeoutMiddleware(t *testing.T) {
	boom := tools.New("boom", "", nil, func(context.Context, json.RawMessage) tools.Result {
		panic("nil map")
	})
	reg := newRegistry(boom)
	reg.Wrap(middleware.TimeoutMiddleware{Timeout: time.Minute})

	p := &scriptedProvider{replies: []ai.Message{
		{ToolCalls: []ai.ToolCall{toolCall("1", "boom", "{}")}},
		{Content: "recovered"},
	}}
	out, err := NewRunner(p, reg).Run(context.Background(), Role{Name: "s", Model: "m", Tools: []string{"boom"}, MaxTurns: 2}, "task")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out.Text)

	history := p.requests[1].Messages
	require.Len(t, history, 3)
	assert.Contains(t, history[2].Content, "ERROR: tool boom failed unexpectedly: nil map")
}

func TestRunner_ToolCallMeta(t *testing.T) {
	var got tools.CallMeta
	inspect := tools.New("inspect", "", nil, func(ctx context.Context, _ json.RawMessage) tools.Result {
		got, _ = tools.CallMetaFromContext(ctx)
		return tools.OK("ok")
	})
	p := &scriptedProvider{replies: []ai.Message{
		{ToolCalls: []ai.ToolCall{toolCall("call-9", "inspect", "{}")}},
		{Content: "done"},
	}}
	ctx := errors.WithRunID(context.Background(), "run-1")
	_, err := NewRunner(p, newRegistry(inspect)).Run(ctx, Role{Name: "portfolio_allocation", Model: "m", Tools: []string{"inspect"}, MaxTurns: 2}, "task")
	require.NoError(t, err)
	assert.Equal(t, tools.CallMeta{RunID: "run-1", Stage: "portfolio_allocation", CallID: "call-9"}, got)
}

func TestCostTracker(t *testing.T) {
	ct := NewCostTracker()
	mini := ai.ModelInfo{Name: "gpt-4o-mini", InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006}
	big := ai.ModelInfo{Name: "gpt-4o", InputCostPer1K: 0.0025, OutputCostPer1K: 0.01}

	cost := ct.RecordUsage("profile", mini, 2000, 1000)
	assert.InDelta(t, 0.0009, cost, 1e-12)
	ct.RecordUsage("market_research", mini, 1000, 0)
	ct.RecordUsage("market_research", big, 1000, 100)

	models := ct.Models()
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-4o", models[0].Model)
	assert.Equal(t, "gpt-4o-mini", models[1].Model)
	assert.Equal(t, int64(3000), models[1].InputTokens)
	assert.Equal(t, int64(2), models[1].CallCount)

	assert.Equal(t, "0.00105", models[1].Spend.String())
	assert.Equal(t, "0.0009", ct.StageSpend("profile").String())
	assert.Equal(t, "0.00365", ct.StageSpend("market_research").String())
	assert.Equal(t, "0.00455", ct.Total().String())
	assert.True(t, ct.StageSpend("report_generation").IsZero())
}
