package market

import (
	"context"
	"fmt"
	"strings"

	"github.com/markcheno/go-talib"

	"advisor/internal/adapters/alphavantage"
	"advisor/internal/tools"
	"advisor/internal/tools/shared"
)

const (
	smaPeriod = 50
	rsiPeriod = 14
)

type supplementaryArgs struct {
	Ticker    string `json:"ticker"`
	DataPoint string `json:"data_point"`
}

// NewSupplementaryDataTool returns one supplementary data point: latest
// price, open, high, low, volume, 50-day SMA or 14-day RSI.
func NewSupplementaryDataTool(deps shared.Deps) tools.Tool {
	return tools.Typed(
		tools.StockSupplementaryData,
		"Retrieves a supplementary data point such as current price, open, high, low, volume, the 50-day SMA or the 14-day RSI.",
		tools.Object([]tools.Property{
			tickerProperty,
			{
				Name:        "data_point",
				Description: "The data point to retrieve: 'price', 'open', 'high', 'low', 'volume', '50day SMA' or 'RSI'",
			},
		}),
		func(ctx context.Context, args supplementaryArgs) tools.Result {
			ticker := tools.NormalizeTicker(args.Ticker)
			if ticker == "" {
				return tools.Fail(tools.KindInvalidInput, "ticker is required")
			}
			if !deps.HasMarketData() {
				return tools.Fail(tools.KindConfig, "market data source not configured")
			}

			point := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(args.DataPoint)), " ", "_")
			switch {
			case point == "price" || point == "close" || point == "latest_price" || point == "current_price":
				return quoteField(ctx, deps, ticker, "Latest closing price", func(q *alphavantage.Quote) string { return shared.Dollars(q.Price) })
			case point == "open" || point == "open_price":
				return quoteField(ctx, deps, ticker, "Opening price", func(q *alphavantage.Quote) string { return shared.Dollars(q.Open) })
			case point == "high" || point == "day_high":
				return quoteField(ctx, deps, ticker, "Day high", func(q *alphavantage.Quote) string { return shared.Dollars(q.High) })
			case point == "low" || point == "day_low":
				return quoteField(ctx, deps, ticker, "Day low", func(q *alphavantage.Quote) string { return shared.Dollars(q.Low) })
			case point == "volume" || point == "trading_volume":
				return quoteField(ctx, deps, ticker, "Trading volume", func(q *alphavantage.Quote) string { return shared.Count(q.Volume) })
			case strings.Contains(point, "sma") || strings.Contains(point, "moving_average"):
				return indicator(ctx, deps, ticker, "SMA", func(closes []float64) (string, bool) {
					if len(closes) < smaPeriod {
						return "", false
					}
					v := last(talib.Sma(closes, smaPeriod))
					return fmt.Sprintf("The %d-day Simple Moving Average (SMA) for %s is: $%.2f", smaPeriod, ticker, v), true
				})
			case strings.Contains(point, "rsi"):
				return indicator(ctx, deps, ticker, "RSI", func(closes []float64) (string, bool) {
					if len(closes) <= rsiPeriod {
						return "", false
					}
					v := last(talib.Rsi(closes, rsiPeriod))
					return fmt.Sprintf("The %d-day Relative Strength Index (RSI) for %s is: %.2f", rsiPeriod, ticker, v), true
				})
			default:
				return tools.Fail(tools.KindInvalidInput,
					"Data point '%s' is not recognized. Available options: 'price', 'open', 'high', 'low', 'volume', '50day SMA', 'RSI'. Please specify one of these for ticker %s.",
					args.DataPoint, ticker)
			}
		},
	)
}

func quoteField(ctx context.Context, deps shared.Deps, ticker, label string, field func(*alphavantage.Quote) string) tools.Result {
	q, err := deps.MarketData.Quote(ctx, ticker)
	if err != nil {
		return tools.FromError(err, "Failed to retrieve quote for %s", ticker)
	}
	return tools.OK(fmt.Sprintf("%s for %s: %s", label, ticker, field(q)))
}

func indicator(ctx context.Context, deps shared.Deps, ticker, name string, compute func([]float64) (string, bool)) tools.Result {
	bars, err := deps.MarketData.DailyBars(ctx, ticker, false)
	if err != nil {
		return tools.FromError(err, "Could not retrieve %s data for ticker %s", name, ticker)
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	text, ok := compute(closes)
	if !ok {
		return tools.Fail(tools.KindNotFound, "Could not retrieve %s data for ticker %s: only %d daily closes available", name, ticker, len(closes))
	}
	return tools.OK(text)
}

// last returns the latest indicator value. Callers check the lookback
// length first since ta-lib indexes past short input.
func last(values []float64) float64 {
	return values[len(values)-1]
}
