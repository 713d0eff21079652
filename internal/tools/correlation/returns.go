package correlation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/markcheno/go-talib"

	"advisor/internal/tools/shared"
	"advisor/pkg/errors"
)

const (
	// MinDataPoints is the fewest daily returns a correlation is computed on.
	MinDataPoints = 20
	// MaxTickers caps the correlation matrix size.
	MaxTickers = 10

	defaultPeriod = "1y"
)

// periods maps the accepted period labels onto a lookback in months.
var periods = map[string]int{
	"1mo": 1,
	"3mo": 3,
	"6mo": 6,
	"1y":  12,
	"2y":  24,
	"3y":  36,
	"5y":  60,
}

// PeriodLabels lists the accepted period values in ascending order.
func PeriodLabels() []string {
	labels := make([]string, 0, len(periods))
	for k := range periods {
		labels = append(labels, k)
	}
	sort.Slice(labels, func(i, j int) bool { return periods[labels[i]] < periods[labels[j]] })
	return labels
}

func normalizePeriod(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return defaultPeriod, nil
	}
	if _, ok := periods[p]; !ok {
		return "", errors.Wrapf(errors.ErrInvalidInput, "unsupported period %q, options: %s", p, strings.Join(PeriodLabels(), ", "))
	}
	return p, nil
}

// alignedReturns loads daily closes for every ticker over period, keeps only
// dates every ticker traded, and converts them to simple daily returns.
func alignedReturns(ctx context.Context, data shared.MarketData, tickers []string, period string) (map[string][]float64, int, error) {
	months := periods[period]
	full := months > 3 // compact output covers about 100 sessions

	series := make(map[string]map[time.Time]float64, len(tickers))
	var latest time.Time
	var missing []string

	for _, t := range tickers {
		bars, err := data.DailyBars(ctx, t, full)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				missing = append(missing, t)
				continue
			}
			return nil, 0, errors.Wrapf(err, "load prices for %s", t)
		}
		closes := make(map[time.Time]float64, len(bars))
		for _, b := range bars {
			closes[b.Date] = b.Close
			if b.Date.After(latest) {
				latest = b.Date
			}
		}
		series[t] = closes
	}

	if len(missing) > 0 {
		return nil, 0, errors.Wrapf(errors.ErrNotFound, "could not retrieve data for: %s", strings.Join(missing, ", "))
	}

	cutoff := latest.AddDate(0, -months, 0)
	dates := commonDates(series, tickers, cutoff)

	out := make(map[string][]float64, len(tickers))
	for _, t := range tickers {
		out[t] = dailyReturns(series[t], dates)
	}

	n := 0
	if len(dates) > 1 {
		n = len(dates) - 1
	}
	return out, n, nil
}

func commonDates(series map[string]map[time.Time]float64, tickers []string, cutoff time.Time) []time.Time {
	first := series[tickers[0]]
	dates := make([]time.Time, 0, len(first))

	for d := range first {
		if d.Before(cutoff) {
			continue
		}
		inAll := true
		for _, t := range tickers[1:] {
			if _, ok := series[t][d]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			dates = append(dates, d)
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func dailyReturns(closes map[time.Time]float64, dates []time.Time) []float64 {
	if len(dates) < 2 {
		return nil
	}
	out := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		prev := closes[dates[i-1]]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, closes[dates[i]]/prev-1)
	}
	return out
}

// pearson is the full-sample correlation of two equal length series.
func pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	values := talib.Correl(x, y, len(x))
	return values[len(values)-1]
}
