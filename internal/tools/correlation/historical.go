package correlation

import (
	"context"
	"fmt"

	"advisor/internal/tools"
	"advisor/internal/tools/shared"
)

type pairArgs struct {
	Ticker1 string `json:"ticker_1"`
	Ticker2 string `json:"ticker_2"`
	Period  string `json:"period"`
}

var periodProperty = tools.Property{
	Name:        "period",
	Description: "Historical period: '1mo', '3mo', '6mo', '1y', '2y', '3y', '5y'. Default '1y'",
	Enum:        PeriodLabels(),
	Optional:    true,
}

// Assess maps a pairwise coefficient onto a diversification assessment.
func Assess(rho float64) string {
	switch {
	case rho < 0:
		return "EXCELLENT diversification (negative correlation - moves in opposite directions)"
	case rho < 0.3:
		return "VERY GOOD diversification (low positive correlation)"
	case rho < 0.5:
		return "GOOD diversification (moderate-low correlation)"
	case rho < 0.7:
		return "FAIR diversification (moderate correlation)"
	case rho < 0.85:
		return "LIMITED diversification (high correlation)"
	default:
		return "POOR diversification (very high correlation - moves almost identically)"
	}
}

// NewHistoricalCorrelationTool computes the correlation of two stocks' daily returns.
func NewHistoricalCorrelationTool(deps shared.Deps) tools.Tool {
	return tools.Typed(
		tools.HistoricalCorrelation,
		"Calculate the historical correlation coefficient between two stocks' daily returns for portfolio diversification assessment.",
		tools.Object([]tools.Property{
			{Name: "ticker_1", Description: "The first stock ticker symbol (e.g., 'PG', 'AAPL')"},
			{Name: "ticker_2", Description: "The second stock ticker symbol (e.g., 'KO', 'MSFT')"},
			periodProperty,
		}),
		func(ctx context.Context, args pairArgs) tools.Result {
			t1, t2 := tools.NormalizeTicker(args.Ticker1), tools.NormalizeTicker(args.Ticker2)
			if t1 == "" || t2 == "" {
				return tools.Fail(tools.KindInvalidInput, "ticker_1 and ticker_2 are required")
			}
			if t1 == t2 {
				return tools.Fail(tools.KindInvalidInput, "ticker_1 and ticker_2 must differ, got %s twice", t1)
			}
			period, err := normalizePeriod(args.Period)
			if err != nil {
				return tools.FromError(err, "")
			}
			if !deps.HasMarketData() {
				return tools.Fail(tools.KindConfig, "market data source not configured")
			}

			returns, n, err := alignedReturns(ctx, deps.MarketData, []string{t1, t2}, period)
			if err != nil {
				return tools.FromError(err, "Failed to calculate correlation for %s and %s", t1, t2)
			}
			if n < MinDataPoints {
				return tools.Fail(tools.KindNotFound,
					"Insufficient data points for correlation calculation. Need at least %d trading days, got %d.", MinDataPoints, n)
			}

			rho := pearson(returns[t1], returns[t2])

			movement := "somewhat independently"
			if rho > 0.5 {
				movement = "together"
			}
			advice := "Consider these for portfolio diversification."
			if rho >= 0.7 {
				advice = "These stocks may provide limited diversification benefits."
			}

			return tools.OK(fmt.Sprintf(`Historical Correlation Analysis:
- Tickers: %s vs %s
- Period: %s
- Correlation Coefficient (ρ): %.3f
- Data Points: %d trading days
- Diversification Assessment: %s

Interpretation: A correlation of %.3f means the stocks move %s. %s`,
				t1, t2, period, rho, n, Assess(rho), rho, movement, advice))
		},
	)
}
