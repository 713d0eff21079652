package market

import (
	"context"
	"fmt"
	"strings"

	"advisor/internal/tools"
	"advisor/internal/tools/shared"
)

// Metric groups accepted by the financial metrics tool.
const (
	MetricCashFlow      = "fcf"
	MetricGrowth        = "growth"
	MetricProfitability = "profitability"
	MetricAll           = "all"
)

type metricsArgs struct {
	Ticker     string `json:"ticker"`
	MetricType string `json:"metric_type"`
}

// metricGroup maps the accepted aliases onto a metric group.
func metricGroup(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fcf", "cashflow", "free_cash_flow":
		return MetricCashFlow
	case "growth", "revenue_growth":
		return MetricGrowth
	case "profitability", "margins":
		return MetricProfitability
	default:
		return MetricAll
	}
}

// NewFinancialMetricsTool returns cash flow, growth or profitability metrics.
// Unknown metric types fall back to the full fundamentals summary.
func NewFinancialMetricsTool(deps shared.Deps) tools.Tool {
	return tools.Typed(
		tools.StockFinancialMetrics,
		"Retrieves specific financial metrics like FCF, revenue growth, or profitability ratios.",
		tools.Object([]tools.Property{
			tickerProperty,
			{
				Name:        "metric_type",
				Description: "Type of metric: 'fcf' (free cash flow), 'growth' (revenue/earnings growth), 'profitability' (margins), or 'all'",
				Enum:        []string{MetricCashFlow, MetricGrowth, MetricProfitability, MetricAll},
				Optional:    true,
			},
		}),
		func(ctx context.Context, args metricsArgs) tools.Result {
			ticker := tools.NormalizeTicker(args.Ticker)
			if ticker == "" {
				return tools.Fail(tools.KindInvalidInput, "ticker is required")
			}
			if !deps.HasMarketData() {
				return tools.Fail(tools.KindConfig, "market data source not configured")
			}

			group := metricGroup(args.MetricType)
			text, err := financialMetrics(ctx, deps, ticker, group)
			if err != nil {
				return tools.FromError(err, "Could not retrieve %s metrics for %s", group, ticker)
			}
			return tools.OK(text)
		},
	)
}

func financialMetrics(ctx context.Context, deps shared.Deps, ticker, group string) (string, error) {
	var b strings.Builder

	switch group {
	case MetricCashFlow:
		cf, err := deps.MarketData.LatestCashFlow(ctx, ticker)
		if err != nil {
			return "", err
		}
		fcf := shared.NA
		if v, ok := cf.FreeCashFlow(); ok {
			fcf = shared.WholeDollars(v)
		}
		fmt.Fprintf(&b, "Cash Flow Metrics for %s (fiscal year ending %s):\n", ticker, shared.Text(cf.FiscalDateEnding))
		fmt.Fprintf(&b, "- Free Cash Flow: %s\n", fcf)
		fmt.Fprintf(&b, "- Operating Cash Flow: %s", shared.WholeDollarsRaw(cf.OperatingCashflow))

	case MetricGrowth:
		ov, err := deps.MarketData.Overview(ctx, ticker)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Growth Metrics for %s:\n", ticker)
		fmt.Fprintf(&b, "- Revenue Growth: %s\n", shared.Percent(ov.QuarterlyRevenueGrowthYOY))
		fmt.Fprintf(&b, "- Earnings Growth: %s", shared.Percent(ov.QuarterlyEarningsGrowthYOY))

	case MetricProfitability:
		ov, err := deps.MarketData.Overview(ctx, ticker)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Profitability Metrics for %s:\n", ticker)
		fmt.Fprintf(&b, "- Profit Margin: %s\n", shared.Percent(ov.ProfitMargin))
		fmt.Fprintf(&b, "- Operating Margin: %s\n", shared.Percent(ov.OperatingMarginTTM))
		fmt.Fprintf(&b, "- Return on Equity (ROE): %s", shared.Percent(ov.ReturnOnEquityTTM))

	default:
		return fundamentals(ctx, deps, ticker)
	}

	return b.String(), nil
}
