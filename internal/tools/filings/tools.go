package filings

import (
	"context"
	"fmt"
	"strings"

	"advisor/internal/tools"
)

// MaxKeywords caps the multi-keyword search.
const MaxKeywords = 10

type riskArgs struct {
	Ticker      string `json:"ticker"`
	RiskKeyword string `json:"risk_keyword"`
}

type multiRiskArgs struct {
	Ticker       string `json:"ticker"`
	RiskKeywords string `json:"risk_keywords"`
}

// NewTools returns both filing search tools backed by store.
func NewTools(store *Store) []tools.Tool {
	return []tools.Tool{
		NewRiskSearchTool(store),
		NewMultiRiskSearchTool(store),
	}
}

// NewRiskSearchTool searches the latest 10-K and 8-K for one risk keyword.
func NewRiskSearchTool(store *Store) tools.Tool {
	return tools.Typed(
		tools.FilingRiskSearch,
		"Download and search the latest SEC 10-K and 8-K regulatory filings for formal risk factor disclosures related to a specific keyword.",
		tools.Object([]tools.Property{
			{Name: "ticker", Description: "The stock ticker symbol (e.g., 'PFE', 'NEM', 'AAPL')"},
			{Name: "risk_keyword", Description: "The keyword to search within filings (e.g., 'geopolitical', 'litigation', 'antitrust', 'regulatory')"},
		}),
		func(ctx context.Context, args riskArgs) tools.Result {
			keyword := strings.TrimSpace(args.RiskKeyword)
			if strings.TrimSpace(args.Ticker) == "" || keyword == "" {
				return tools.Fail(tools.KindInvalidInput, "ticker and risk_keyword are required")
			}
			ticker, err := tools.ParseTicker(args.Ticker)
			if err != nil {
				return tools.Fail(tools.KindInvalidInput, "Invalid ticker %q. Use the exchange symbol, e.g. 'AAPL'", args.Ticker)
			}

			var mentions []Mention
			err = store.WithFilings(ctx, ticker, func(docs []Document) error {
				var err error
				mentions, err = FindMentions(docs, keyword)
				return err
			})
			if err != nil {
				return tools.FromError(err, "No SEC filings could be downloaded for ticker %s. Ticker may be invalid or filings unavailable", ticker)
			}

			return tools.OK(renderMentions(ticker, keyword, mentions))
		},
	)
}

func renderMentions(ticker, keyword string, mentions []Mention) string {
	var b strings.Builder

	if len(mentions) == 0 {
		fmt.Fprintf(&b, "SEC FILING SEARCH RESULT for %s:\n\n", ticker)
		fmt.Fprintf(&b, "No mentions of '%s' found in the latest 10-K or 8-K filings.\n\n", keyword)
		b.WriteString("INTERPRETATION: This risk may not be formally disclosed under this specific term, " +
			"or it may not be considered material by the company. Consider searching with alternative keywords " +
			"(e.g., 'regulation' instead of 'regulatory', 'legal' instead of 'litigation').")
		return b.String()
	}

	fmt.Fprintf(&b, "SEC RISK DISCLOSURE FOUND for '%s' in %s filings:\n\n", keyword, ticker)
	for _, m := range mentions {
		fmt.Fprintf(&b, "Filing Type: %s\nFile: %s\nMentions Found: %d\n\n", m.Form, m.File, len(m.Contexts))
		for i, snippet := range m.Contexts {
			if i >= shownPerFile {
				break
			}
			fmt.Fprintf(&b, "Context %d: ...%s...\n\n", i+1, Clip(snippet))
		}
	}
	fmt.Fprintf(&b, "RISK ASSESSMENT: The keyword '%s' appears in formal SEC disclosures, "+
		"indicating %s has acknowledged this as a material risk factor.", keyword, ticker)
	return b.String()
}

// NewMultiRiskSearchTool counts several risk keywords across the latest filings.
func NewMultiRiskSearchTool(store *Store) tools.Tool {
	return tools.Typed(
		tools.FilingMultiRiskSearch,
		"Search SEC filings for multiple risk keywords at once to get a comprehensive risk assessment.",
		tools.Object([]tools.Property{
			{Name: "ticker", Description: "The stock ticker symbol (e.g., 'AAPL', 'MSFT')"},
			{Name: "risk_keywords", Description: "Comma-separated list of keywords (e.g., 'litigation,regulatory,geopolitical'), at most 10"},
		}),
		func(ctx context.Context, args multiRiskArgs) tools.Result {
			keywords := tools.SplitList(args.RiskKeywords)
			if strings.TrimSpace(args.Ticker) == "" || len(keywords) == 0 {
				return tools.Fail(tools.KindInvalidInput, "ticker and risk_keywords are required")
			}
			ticker, err := tools.ParseTicker(args.Ticker)
			if err != nil {
				return tools.Fail(tools.KindInvalidInput, "Invalid ticker %q. Use the exchange symbol, e.g. 'AAPL'", args.Ticker)
			}
			if len(keywords) > MaxKeywords {
				return tools.Fail(tools.KindInvalidInput, "Maximum %d keywords allowed. Please reduce the number of search terms.", MaxKeywords)
			}

			var counts map[string]int
			err = store.WithFilings(ctx, ticker, func(docs []Document) error {
				counts = CountMentions(docs, keywords)
				return nil
			})
			if err != nil {
				return tools.FromError(err, "Could not download SEC filings for %s", ticker)
			}

			return tools.OK(renderCounts(ticker, keywords, counts))
		},
	)
}

func renderCounts(ticker string, keywords []string, counts map[string]int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SEC RISK DISCLOSURE ANALYSIS for %s\n", ticker)
	b.WriteString("Filings Searched: Latest 10-K and 8-K\n\n")
	b.WriteString("Risk Factor Mentions:\n")
	b.WriteString(strings.Repeat("-", 50) + "\n")

	var found, missing []string
	total := 0
	for _, k := range keywords {
		n := counts[k]
		total += n
		if n > 0 {
			fmt.Fprintf(&b, "- %s: %d mentions - %s\n", strings.ToUpper(k), n, Level(n))
			found = append(found, k)
		} else {
			fmt.Fprintf(&b, "- %s: Not found\n", strings.ToUpper(k))
			missing = append(missing, k)
		}
	}

	b.WriteString("\n" + strings.Repeat("=", 50) + "\n")
	if len(found) > 0 {
		fmt.Fprintf(&b, "\nIDENTIFIED RISKS: %s", strings.Join(found, ", "))
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "\nNO DISCLOSURE FOR: %s", strings.Join(missing, ", "))
	}
	fmt.Fprintf(&b, "\n\nOVERALL RISK PROFILE: %s", OverallLevel(total))
	return b.String()
}
