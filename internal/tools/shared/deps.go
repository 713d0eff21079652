package shared

import (
	"context"

	"advisor/internal/adapters/alphavantage"
	"advisor/pkg/logger"
)

// MarketData is the market data source used by the market and correlation tools.
type MarketData interface {
	Overview(ctx context.Context, symbol string) (*alphavantage.Overview, error)
	Quote(ctx context.Context, symbol string) (*alphavantage.Quote, error)
	DailyBars(ctx context.Context, symbol string, full bool) ([]alphavantage.Bar, error)
	LatestCashFlow(ctx context.Context, symbol string) (*alphavantage.CashFlowReport, error)
	LatestBalanceSheet(ctx context.Context, symbol string) (*alphavantage.BalanceSheetReport, error)
}

// Deps bundles dependencies required by concrete tool implementations
type Deps struct {
	MarketData MarketData
	Log        *logger.Logger
}

// HasMarketData reports whether the market data source is available
func (d Deps) HasMarketData() bool {
	return d.MarketData != nil
}

// Logger returns the configured logger or the global one.
func (d Deps) Logger() *logger.Logger {
	if d.Log == nil {
		return logger.Get()
	}
	return d.Log
}
