package correlation

import (
	"advisor/internal/tools"
	"advisor/internal/tools/shared"
)

// NewTools returns both correlation tools.
func NewTools(deps shared.Deps) []tools.Tool {
	return []tools.Tool{
		NewHistoricalCorrelationTool(deps),
		NewPortfolioCorrelationTool(deps),
	}
}
