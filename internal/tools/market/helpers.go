package market

import (
	"github.com/shopspring/decimal"

	"advisor/internal/tools"
	"advisor/internal/tools/shared"
)

var hundred = decimal.NewFromInt(100)

// NewTools returns every market data tool.
func NewTools(deps shared.Deps) []tools.Tool {
	return []tools.Tool{
		NewFundamentalsTool(deps),
		NewFinancialMetricsTool(deps),
		NewRiskIndicatorsTool(deps),
		NewSupplementaryDataTool(deps),
	}
}
