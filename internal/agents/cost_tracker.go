package agents

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"advisor/internal/adapters/ai"
)

var perThousand = decimal.NewFromInt(1_000)

// CostTracker accumulates token usage and spend per model and per stage.
// Amounts are summed as decimals; a long run makes hundreds of small calls.
type CostTracker struct {
	mu     sync.RWMutex
	models map[string]*ModelCost
	stages map[string]decimal.Decimal
}

// ModelCost is the usage recorded for one model.
type ModelCost struct {
	Model        string
	InputTokens  int64
	OutputTokens int64
	CallCount    int64
	Spend        decimal.Decimal
}

// USD is the spend as a float for logs and metrics.
func (mc ModelCost) USD() float64 {
	return mc.Spend.InexactFloat64()
}

func NewCostTracker() *CostTracker {
	return &CostTracker{
		models: make(map[string]*ModelCost),
		stages: make(map[string]decimal.Decimal),
	}
}

// RecordUsage adds one model call made by stage and returns its cost in USD.
func (ct *CostTracker) RecordUsage(stage string, model ai.ModelInfo, inputTokens, outputTokens int) float64 {
	cost := CalculateCost(model, inputTokens, outputTokens)

	ct.mu.Lock()
	defer ct.mu.Unlock()

	mc, ok := ct.models[model.Name]
	if !ok {
		mc = &ModelCost{Model: model.Name}
		ct.models[model.Name] = mc
	}
	mc.InputTokens += int64(inputTokens)
	mc.OutputTokens += int64(outputTokens)
	mc.CallCount++
	mc.Spend = mc.Spend.Add(cost)
	ct.stages[stage] = ct.stages[stage].Add(cost)

	return cost.InexactFloat64()
}

// Models returns a snapshot of every model's usage ordered by model name.
func (ct *CostTracker) Models() []ModelCost {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	out := make([]ModelCost, 0, len(ct.models))
	for _, mc := range ct.models {
		out = append(out, *mc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// StageSpend returns the spend attributed to one stage.
func (ct *CostTracker) StageSpend(stage string) decimal.Decimal {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.stages[stage]
}

// Total returns the spend across all models.
func (ct *CostTracker) Total() decimal.Decimal {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	total := decimal.Zero
	for _, mc := range ct.models {
		total = total.Add(mc.Spend)
	}
	return total
}

// CalculateCost prices token usage with the model's per-1K rates.
func CalculateCost(model ai.ModelInfo, inputTokens, outputTokens int) decimal.Decimal {
	in := decimal.NewFromInt(int64(inputTokens)).Mul(decimal.NewFromFloat(model.InputCostPer1K))
	out := decimal.NewFromInt(int64(outputTokens)).Mul(decimal.NewFromFloat(model.OutputCostPer1K))
	return in.Add(out).Div(perThousand)
}
