package market

import (
	"context"
	"fmt"
	"strings"

	"advisor/internal/adapters/alphavantage"
	"advisor/internal/tools"
	"advisor/internal/tools/shared"
)

// NewRiskIndicatorsTool returns volatility, 52-week range, distance from the
// 52-week high and analyst consensus for one ticker.
func NewRiskIndicatorsTool(deps shared.Deps) tools.Tool {
	return tools.Typed(
		tools.StockRiskIndicators,
		"Checks key risk indicators for a stock including volatility (beta), 52-week range, and analyst ratings.",
		tools.Object([]tools.Property{tickerProperty}),
		func(ctx context.Context, args tickerArgs) tools.Result {
			ticker := tools.NormalizeTicker(args.Ticker)
			if ticker == "" {
				return tools.Fail(tools.KindInvalidInput, "ticker is required")
			}
			if !deps.HasMarketData() {
				return tools.Fail(tools.KindConfig, "market data source not configured")
			}

			ov, err := deps.MarketData.Overview(ctx, ticker)
			if err != nil {
				return tools.FromError(err, "Could not retrieve risk indicators for %s", ticker)
			}

			priceRaw := ""
			if q, err := deps.MarketData.Quote(ctx, ticker); err == nil {
				priceRaw = q.Price
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Risk Indicators for %s:\n", ticker)
			fmt.Fprintf(&b, "- Beta (Volatility): %s\n", shared.Plain(ov.Beta))
			fmt.Fprintf(&b, "- 52-Week High: %s\n", shared.Dollars(ov.WeekHigh52))
			fmt.Fprintf(&b, "- 52-Week Low: %s\n", shared.Dollars(ov.WeekLow52))
			fmt.Fprintf(&b, "- Current Price: %s\n", shared.Dollars(priceRaw))
			fmt.Fprintf(&b, "- Distance from 52-Week High: %s\n", distanceFromHigh(priceRaw, ov.WeekHigh52))
			fmt.Fprintf(&b, "- Analyst Recommendation: %s\n", ov.Recommendation())
			fmt.Fprintf(&b, "- Analyst Target Price: %s", shared.Dollars(ov.AnalystTargetPrice))

			return tools.OK(b.String())
		},
	)
}

// distanceFromHigh is (price - high) / high as a signed percentage.
func distanceFromHigh(priceRaw, highRaw string) string {
	price, ok := alphavantage.Number(priceRaw)
	if !ok {
		return shared.NA
	}
	high, ok := alphavantage.Number(highRaw)
	if !ok || high.IsZero() {
		return shared.NA
	}
	return price.Sub(high).Div(high).Mul(hundred).StringFixed(2) + "%"
}
