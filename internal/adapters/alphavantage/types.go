package alphavantage

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Number parses an Alpha Vantage numeric string. Placeholders such as
// "None" or "-" report ok=false.
func Number(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	switch raw {
	case "", "None", "-", "N/A", "null":
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Overview is the OVERVIEW company profile. Numeric fields stay raw strings.
type Overview struct {
	Symbol                     string `json:"Symbol"`
	Name                       string `json:"Name"`
	Sector                     string `json:"Sector"`
	Industry                   string `json:"Industry"`
	Currency                   string `json:"Currency"`
	MarketCapitalization       string `json:"MarketCapitalization"`
	PERatio                    string `json:"PERatio"`
	ForwardPE                  string `json:"ForwardPE"`
	Beta                       string `json:"Beta"`
	DividendYield              string `json:"DividendYield"`
	ProfitMargin               string `json:"ProfitMargin"`
	OperatingMarginTTM         string `json:"OperatingMarginTTM"`
	ReturnOnEquityTTM          string `json:"ReturnOnEquityTTM"`
	QuarterlyRevenueGrowthYOY  string `json:"QuarterlyRevenueGrowthYOY"`
	QuarterlyEarningsGrowthYOY string `json:"QuarterlyEarningsGrowthYOY"`
	AnalystTargetPrice         string `json:"AnalystTargetPrice"`
	AnalystRatingStrongBuy     string `json:"AnalystRatingStrongBuy"`
	AnalystRatingBuy           string `json:"AnalystRatingBuy"`
	AnalystRatingHold          string `json:"AnalystRatingHold"`
	AnalystRatingSell          string `json:"AnalystRatingSell"`
	AnalystRatingStrongSell    string `json:"AnalystRatingStrongSell"`
	WeekHigh52                 string `json:"52WeekHigh"`
	WeekLow52                  string `json:"52WeekLow"`
}

// Recommendation condenses analyst rating counts into a single key.
func (o Overview) Recommendation() string {
	counts := []struct {
		key string
		raw string
	}{
		{"strong_buy", o.AnalystRatingStrongBuy},
		{"buy", o.AnalystRatingBuy},
		{"hold", o.AnalystRatingHold},
		{"sell", o.AnalystRatingSell},
		{"strong_sell", o.AnalystRatingStrongSell},
	}

	best, bestN := "N/A", int64(0)
	for _, c := range counts {
		n, ok := Number(c.raw)
		if ok && n.IntPart() > bestN {
			best, bestN = c.key, n.IntPart()
		}
	}
	return best
}

// Quote is the GLOBAL_QUOTE payload.
type Quote struct {
	Symbol        string `json:"01. symbol"`
	Open          string `json:"02. open"`
	High          string `json:"03. high"`
	Low           string `json:"04. low"`
	Price         string `json:"05. price"`
	Volume        string `json:"06. volume"`
	LatestDay     string `json:"07. latest trading day"`
	PreviousClose string `json:"08. previous close"`
	ChangePercent string `json:"10. change percent"`
}

type quoteResponse struct {
	Quote Quote `json:"Global Quote"`
}

// Bar is one daily OHLCV bar.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type dailyResponse struct {
	Series map[string]dailyBar `json:"Time Series (Daily)"`
}

// bars converts the keyed series into bars sorted oldest first.
func (r dailyResponse) bars() []Bar {
	out := make([]Bar, 0, len(r.Series))
	for day, b := range r.Series {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		closePx, ok := Number(b.Close)
		if !ok {
			continue
		}
		open, _ := Number(b.Open)
		high, _ := Number(b.High)
		low, _ := Number(b.Low)
		vol, _ := Number(b.Volume)
		out = append(out, Bar{
			Date:   date,
			Open:   open.InexactFloat64(),
			High:   high.InexactFloat64(),
			Low:    low.InexactFloat64(),
			Close:  closePx.InexactFloat64(),
			Volume: vol.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// CashFlowReport is one annual CASH_FLOW report.
type CashFlowReport struct {
	FiscalDateEnding    string `json:"fiscalDateEnding"`
	OperatingCashflow   string `json:"operatingCashflow"`
	CapitalExpenditures string `json:"capitalExpenditures"`
}

// FreeCashFlow is operating cash flow less capital expenditures.
func (r CashFlowReport) FreeCashFlow() (decimal.Decimal, bool) {
	ocf, ok := Number(r.OperatingCashflow)
	if !ok {
		return decimal.Zero, false
	}
	capex, ok := Number(r.CapitalExpenditures)
	if !ok {
		return decimal.Zero, false
	}
	return ocf.Sub(capex.Abs()), true
}

type cashFlowResponse struct {
	Symbol        string           `json:"symbol"`
	AnnualReports []CashFlowReport `json:"annualReports"`
}

// BalanceSheetReport is one annual BALANCE_SHEET report.
type BalanceSheetReport struct {
	FiscalDateEnding       string `json:"fiscalDateEnding"`
	TotalShareholderEquity string `json:"totalShareholderEquity"`
	ShortLongTermDebtTotal string `json:"shortLongTermDebtTotal"`
}

// DebtToEquity returns total debt over shareholder equity as a percentage.
func (r BalanceSheetReport) DebtToEquity() (decimal.Decimal, bool) {
	debt, ok := Number(r.ShortLongTermDebtTotal)
	if !ok {
		return decimal.Zero, false
	}
	equity, ok := Number(r.TotalShareholderEquity)
	if !ok || equity.IsZero() {
		return decimal.Zero, false
	}
	return debt.Div(equity).Mul(decimal.NewFromInt(100)), true
}

type balanceSheetResponse struct {
	Symbol        string               `json:"symbol"`
	AnnualReports []BalanceSheetReport `json:"annualReports"`
}
