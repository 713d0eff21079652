package alphavantage

import (
	"context"
	"net/url"

	"advisor/pkg/errors"
)

// Overview fetches the company profile and key ratios.
func (c *Client) Overview(ctx context.Context, symbol string) (*Overview, error) {
	var out Overview
	if err := c.query(ctx, "OVERVIEW", symbol, nil, &out); err != nil {
		return nil, err
	}
	// Unknown symbols come back as an empty object.
	if out.Symbol == "" {
		return nil, errors.Wrapf(errors.ErrNotFound, "no overview data for ticker %s", symbol)
	}
	return &out, nil
}

// Quote fetches the latest quote.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var out quoteResponse
	if err := c.query(ctx, "GLOBAL_QUOTE", symbol, nil, &out); err != nil {
		return nil, err
	}
	if out.Quote.Symbol == "" {
		return nil, errors.Wrapf(errors.ErrNotFound, "could not find quote data for ticker %s", symbol)
	}
	return &out.Quote, nil
}

// DailyBars fetches daily bars sorted oldest first. Full history is requested
// when more than the compact 100 bars are needed.
func (c *Client) DailyBars(ctx context.Context, symbol string, full bool) ([]Bar, error) {
	size := "compact"
	if full {
		size = "full"
	}

	var out dailyResponse
	if err := c.query(ctx, "TIME_SERIES_DAILY", symbol, url.Values{"outputsize": {size}}, &out); err != nil {
		return nil, err
	}

	bars := out.bars()
	if len(bars) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no price history for ticker %s", symbol)
	}
	return bars, nil
}

// LatestCashFlow returns the most recent annual cash flow report.
func (c *Client) LatestCashFlow(ctx context.Context, symbol string) (*CashFlowReport, error) {
	var out cashFlowResponse
	if err := c.query(ctx, "CASH_FLOW", symbol, nil, &out); err != nil {
		return nil, err
	}
	if len(out.AnnualReports) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no cash flow reports for ticker %s", symbol)
	}
	return &out.AnnualReports[0], nil
}

// LatestBalanceSheet returns the most recent annual balance sheet.
func (c *Client) LatestBalanceSheet(ctx context.Context, symbol string) (*BalanceSheetReport, error) {
	var out balanceSheetResponse
	if err := c.query(ctx, "BALANCE_SHEET", symbol, nil, &out); err != nil {
		return nil, err
	}
	if len(out.AnnualReports) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no balance sheet reports for ticker %s", symbol)
	}
	return &out.AnnualReports[0], nil
}
