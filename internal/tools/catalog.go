package tools

// Category groups tools for metrics and prompt generation.
type Category string

const (
	CategoryMarketData  Category = "market_data"
	CategoryCorrelation Category = "correlation"
	CategorySearch      Category = "search"
	CategoryFilings     Category = "filings"
	CategoryReport      Category = "report"
)

// Tool names referenced by stage roles and prompts.
const (
	StockFundamentals      = "get_stock_fundamentals"
	StockFinancialMetrics  = "get_stock_financial_metrics"
	StockRiskIndicators    = "check_stock_risk_indicators"
	StockSupplementaryData = "get_supplementary_stock_data"
	HistoricalCorrelation  = "calculate_historical_correlation"
	PortfolioCorrelation   = "calculate_portfolio_correlation_matrix"
	WebSearch              = "general_web_search"
	FilingRiskSearch       = "search_sec_filings_for_risk"
	FilingMultiRiskSearch  = "search_sec_filings_multiple_risks"
	MarkdownGenerator      = "markdown_generator_tool"
)

// Definition describes a tool's metadata for registration and documentation.
type Definition struct {
	Name     string
	Category Category
	// Cacheable tools are pure lookups whose result may be reused within the cache TTL.
	Cacheable bool
}

var toolDefinitions = []Definition{
	{Name: StockFundamentals, Category: CategoryMarketData, Cacheable: true},
	{Name: StockFinancialMetrics, Category: CategoryMarketData, Cacheable: true},
	{Name: StockRiskIndicators, Category: CategoryMarketData, Cacheable: true},
	{Name: StockSupplementaryData, Category: CategoryMarketData, Cacheable: true},
	{Name: HistoricalCorrelation, Category: CategoryCorrelation, Cacheable: true},
	{Name: PortfolioCorrelation, Category: CategoryCorrelation, Cacheable: true},
	{Name: WebSearch, Category: CategorySearch, Cacheable: true},
	{Name: FilingRiskSearch, Category: CategoryFilings},
	{Name: FilingMultiRiskSearch, Category: CategoryFilings},
	{Name: MarkdownGenerator, Category: CategoryReport},
}

// Lookup returns the catalog entry for a tool name.
func Lookup(name string) (Definition, bool) {
	for _, d := range toolDefinitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Definitions returns a copy of the catalog.
func Definitions() []Definition {
	out := make([]Definition, len(toolDefinitions))
	copy(out, toolDefinitions)
	return out
}
