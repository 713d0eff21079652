package market

import (
	"context"
	"fmt"
	"strings"

	"advisor/internal/tools"
	"advisor/internal/tools/shared"
)

type tickerArgs struct {
	Ticker string `json:"ticker"`
}

var tickerProperty = tools.Property{
	Name:        "ticker",
	Description: "The stock ticker symbol (e.g., 'AAPL', 'MSFT')",
}

// NewFundamentalsTool returns price, market cap, P/E, beta, debt-to-equity,
// dividend yield and sector for one ticker.
func NewFundamentalsTool(deps shared.Deps) tools.Tool {
	return tools.Typed(
		tools.StockFundamentals,
		"Retrieves comprehensive stock fundamentals including price, market cap, P/E ratio, beta, debt-to-equity, and dividend information.",
		tools.Object([]tools.Property{tickerProperty}),
		func(ctx context.Context, args tickerArgs) tools.Result {
			ticker := tools.NormalizeTicker(args.Ticker)
			if ticker == "" {
				return tools.Fail(tools.KindInvalidInput, "ticker is required")
			}
			if !deps.HasMarketData() {
				return tools.Fail(tools.KindConfig, "market data source not configured")
			}

			text, err := fundamentals(ctx, deps, ticker)
			if err != nil {
				return tools.FromError(err, "Could not retrieve data for ticker %s", ticker)
			}
			return tools.OK(text)
		},
	)
}

// fundamentals is shared by the fundamentals tool and the "all" metric type.
func fundamentals(ctx context.Context, deps shared.Deps, ticker string) (string, error) {
	ov, err := deps.MarketData.Overview(ctx, ticker)
	if err != nil {
		return "", err
	}

	price := shared.NA
	if q, err := deps.MarketData.Quote(ctx, ticker); err == nil {
		price = shared.Dollars(q.Price)
	} else {
		deps.Logger().Debugw("Quote unavailable for fundamentals", "ticker", ticker, "error", err)
	}

	pe := shared.Plain(ov.PERatio)
	if pe == shared.NA {
		pe = shared.Plain(ov.ForwardPE)
	}

	debtToEquity := shared.NA
	if bs, err := deps.MarketData.LatestBalanceSheet(ctx, ticker); err == nil {
		if de, ok := bs.DebtToEquity(); ok {
			debtToEquity = de.StringFixed(2)
		}
	} else {
		deps.Logger().Debugw("Balance sheet unavailable for fundamentals", "ticker", ticker, "error", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stock Fundamentals for %s:\n", ticker)
	fmt.Fprintf(&b, "- Current Price: %s\n", price)
	fmt.Fprintf(&b, "- Market Cap: %s\n", shared.WholeDollarsRaw(ov.MarketCapitalization))
	fmt.Fprintf(&b, "- P/E Ratio: %s\n", pe)
	fmt.Fprintf(&b, "- Beta: %s\n", shared.Plain(ov.Beta))
	fmt.Fprintf(&b, "- Debt-to-Equity: %s\n", debtToEquity)
	fmt.Fprintf(&b, "- Dividend Yield: %s\n", shared.Percent(ov.DividendYield))
	fmt.Fprintf(&b, "- Sector: %s", shared.Text(ov.Sector))
	return b.String(), nil
}
