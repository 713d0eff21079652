package correlation

import (
	"context"
	"fmt"
	"strings"

	"advisor/internal/tools"
	"advisor/internal/tools/shared"
)

type matrixArgs struct {
	Tickers string `json:"tickers"`
	Period  string `json:"period"`
}

// AssessPortfolio maps the average off-diagonal correlation onto a verdict.
func AssessPortfolio(avg float64) string {
	switch {
	case avg < 0.3:
		return "EXCELLENT portfolio diversification"
	case avg < 0.5:
		return "GOOD portfolio diversification"
	case avg < 0.7:
		return "MODERATE portfolio diversification"
	default:
		return "LIMITED portfolio diversification - consider more diverse holdings"
	}
}

// NewPortfolioCorrelationTool computes the correlation matrix for up to ten stocks.
func NewPortfolioCorrelationTool(deps shared.Deps) tools.Tool {
	return tools.Typed(
		tools.PortfolioCorrelation,
		"Calculate a correlation matrix for multiple stocks to assess overall portfolio diversification.",
		tools.Object([]tools.Property{
			{Name: "tickers", Description: "Comma-separated list of stock ticker symbols (e.g., 'AAPL,MSFT,GOOGL,TSLA'), at most 10"},
			periodProperty,
		}),
		func(ctx context.Context, args matrixArgs) tools.Result {
			tickers := uniqueTickers(args.Tickers)
			if len(tickers) < 2 {
				return tools.Fail(tools.KindInvalidInput, "Please provide at least 2 tickers separated by commas.")
			}
			if len(tickers) > MaxTickers {
				return tools.Fail(tools.KindInvalidInput, "Maximum %d tickers allowed for correlation matrix calculation.", MaxTickers)
			}
			period, err := normalizePeriod(args.Period)
			if err != nil {
				return tools.FromError(err, "")
			}
			if !deps.HasMarketData() {
				return tools.Fail(tools.KindConfig, "market data source not configured")
			}

			returns, n, err := alignedReturns(ctx, deps.MarketData, tickers, period)
			if err != nil {
				return tools.FromError(err, "Failed to calculate correlation matrix")
			}
			if n < MinDataPoints {
				return tools.Fail(tools.KindNotFound,
					"Insufficient data points. Need at least %d trading days, got %d.", MinDataPoints, n)
			}

			matrix := make([][]float64, len(tickers))
			for i := range tickers {
				matrix[i] = make([]float64, len(tickers))
				for j := range tickers {
					if i == j {
						matrix[i][j] = 1
						continue
					}
					if j < i {
						matrix[i][j] = matrix[j][i]
						continue
					}
					matrix[i][j] = pearson(returns[tickers[i]], returns[tickers[j]])
				}
			}

			return tools.OK(renderMatrix(tickers, matrix, period, n))
		},
	)
}

func uniqueTickers(raw string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range tools.SplitList(raw) {
		t = tools.NormalizeTicker(t)
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// AverageOffDiagonal averages every coefficient except the diagonal.
func AverageOffDiagonal(matrix [][]float64) float64 {
	sum, count := 0.0, 0
	for i := range matrix {
		for j := range matrix[i] {
			if i != j {
				sum += matrix[i][j]
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func renderMatrix(tickers []string, matrix [][]float64, period string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Portfolio Correlation Matrix (%s)\nData Points: %d trading days\n\n", period, n)

	cols := make([]string, len(tickers))
	for i, t := range tickers {
		cols[i] = fmt.Sprintf("%-6s", t)
	}
	header := "Ticker  | " + strings.Join(cols, " | ")
	b.WriteString(header + "\n" + strings.Repeat("-", len(header)) + "\n")

	for i, t := range tickers {
		cells := make([]string, len(tickers))
		for j := range tickers {
			cells[j] = fmt.Sprintf("%6.3f", matrix[i][j])
		}
		fmt.Fprintf(&b, "%-7s | %s\n", t, strings.Join(cells, " | "))
	}

	avg := AverageOffDiagonal(matrix)
	fmt.Fprintf(&b, "\nAverage Correlation: %.3f\n%s", avg, AssessPortfolio(avg))
	return b.String()
}
