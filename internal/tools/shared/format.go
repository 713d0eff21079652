package shared

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"advisor/internal/adapters/alphavantage"
)

// NA marks an unavailable value in tool output.
const NA = "N/A"

var hundred = decimal.NewFromInt(100)

// Dollars renders a price such as "$182.31".
func Dollars(raw string) string {
	d, ok := alphavantage.Number(raw)
	if !ok {
		return NA
	}
	return "$" + humanize.CommafWithDigits(d.InexactFloat64(), 2)
}

// WholeDollars renders large amounts with thousands separators, e.g. "$390,000,000,000".
func WholeDollars(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "$" + humanize.Comma(d.Round(0).IntPart())
}

// WholeDollarsRaw is WholeDollars for a raw upstream string.
func WholeDollarsRaw(raw string) string {
	d, ok := alphavantage.Number(raw)
	if !ok {
		return NA
	}
	return WholeDollars(d)
}

// Percent renders a ratio (0.0245) as "2.45%".
func Percent(raw string) string {
	d, ok := alphavantage.Number(raw)
	if !ok {
		return NA
	}
	return d.Mul(hundred).StringFixed(2) + "%"
}

// Plain renders a number as published, or N/A.
func Plain(raw string) string {
	if _, ok := alphavantage.Number(raw); !ok {
		return NA
	}
	return strings.TrimSpace(raw)
}

// Count renders an integer count with separators.
func Count(raw string) string {
	d, ok := alphavantage.Number(raw)
	if !ok {
		return NA
	}
	return humanize.Comma(d.IntPart())
}

// Text renders a string field, or N/A when blank.
func Text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" {
		return NA
	}
	return s
}
