package pipeline

import (
	"advisor/internal/adapters/ai"
	"advisor/internal/tools"
)

// Stage identifies one step of the pipeline.
type Stage string

const (
	StageProfile                Stage = "profile"
	StageMarketResearch         Stage = "market_research"
	StageQuantitativeVetting    Stage = "quantitative_vetting"
	StageQualitativeRiskVetting Stage = "qualitative_risk_vetting"
	StagePortfolioAllocation    Stage = "portfolio_allocation"
	StageReportGeneration       Stage = "report_generation"
)

func (s Stage) String() string { return string(s) }

// Definition is the fixed shape of a stage. Models and turn budgets come
// from configuration.
type Definition struct {
	Stage         Stage
	Label         string   // Section heading in the accumulated context
	Tools         []string // Tool names bound to the stage's agent
	ToolChoice    ai.ToolChoice
	JSONOutput    bool
	ProgressStart int // Percent reported before the stage runs
	ProgressEnd   int // Percent reported after it succeeds
}

// SystemTemplate is the template ID of the stage's instructions.
func (d Definition) SystemTemplate() string {
	return "stages/" + string(d.Stage) + "/system"
}

// TaskTemplate is the template ID of the stage's task message.
func (d Definition) TaskTemplate() string {
	return "stages/" + string(d.Stage) + "/task"
}

var definitions = []Definition{
	{
		Stage:         StageProfile,
		Label:         "Client Profile",
		ToolChoice:    ai.ToolChoiceNone,
		JSONOutput:    true,
		ProgressStart: 10,
		ProgressEnd:   20,
	},
	{
		Stage:         StageMarketResearch,
		Label:         "Market Research",
		Tools:         []string{tools.WebSearch},
		ToolChoice:    ai.ToolChoiceAuto,
		ProgressStart: 30,
		ProgressEnd:   40,
	},
	{
		Stage: StageQuantitativeVetting,
		Label: "Quantitative Analysis",
		Tools: []string{
			tools.StockFundamentals,
			tools.StockFinancialMetrics,
			tools.StockRiskIndicators,
			tools.StockSupplementaryData,
		},
		ToolChoice:    ai.ToolChoiceAuto,
		ProgressStart: 50,
		ProgressEnd:   60,
	},
	{
		Stage: StageQualitativeRiskVetting,
		Label: "Qualitative Risk Assessment",
		Tools: []string{
			tools.FilingRiskSearch,
			tools.FilingMultiRiskSearch,
			tools.WebSearch,
		},
		ToolChoice:    ai.ToolChoiceAuto,
		ProgressStart: 70,
		ProgressEnd:   80,
	},
	{
		Stage: StagePortfolioAllocation,
		Label: "Portfolio Allocation",
		Tools: []string{
			tools.StockFundamentals,
			tools.StockRiskIndicators,
			tools.HistoricalCorrelation,
			tools.PortfolioCorrelation,
		},
		ToolChoice:    ai.ToolChoiceAuto,
		ProgressStart: 85,
		ProgressEnd:   90,
	},
	{
		Stage:         StageReportGeneration,
		Label:         "Investment Recommendation Report",
		Tools:         []string{tools.MarkdownGenerator},
		ToolChoice:    ai.ToolChoiceAuto,
		ProgressStart: 95,
		ProgressEnd:   100,
	},
}

// Definitions returns the stages in execution order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition of a stage.
func Lookup(s Stage) (Definition, bool) {
	for _, d := range definitions {
		if d.Stage == s {
			return d, true
		}
	}
	return Definition{}, false
}

// TemplateIDs lists every template the pipeline renders.
func TemplateIDs() []string {
	ids := make([]string, 0, len(definitions)*2)
	for _, d := range definitions {
		ids = append(ids, d.SystemTemplate(), d.TaskTemplate())
	}
	return ids
}
