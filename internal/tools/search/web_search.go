package search

import (
	"context"
	"fmt"
	"strings"

	adapter "advisor/internal/adapters/search"
	"advisor/internal/tools"
)

const defaultResults = 5

type webSearchArgs struct {
	Query string `json:"query"`
}

// NewWebSearchTool exposes the configured search provider. When the provider
// could not be built, setupErr is reported to the model on every call.
func NewWebSearchTool(searcher adapter.Searcher, results int, setupErr error) tools.Tool {
	if results <= 0 {
		results = defaultResults
	}

	return tools.Typed(
		tools.WebSearch,
		"Performs a web search to find recent news, sentiment, and broad market trends. Returns the top results with titles and snippets.",
		tools.Object([]tools.Property{
			{Name: "query", Description: "The search query, e.g. 'latest market sentiment Consumer Staples 2025'"},
		}),
		func(ctx context.Context, args webSearchArgs) tools.Result {
			if setupErr != nil {
				return tools.FromError(setupErr, "")
			}
			if searcher == nil {
				return tools.Fail(tools.KindConfig, "web search is not configured")
			}

			query := strings.TrimSpace(args.Query)
			if query == "" {
				return tools.Fail(tools.KindInvalidInput, "query is required")
			}

			items, err := searcher.Search(ctx, query, results)
			if err != nil {
				return tools.FromError(err, "Search for '%s' failed", query)
			}

			return tools.OK(FormatResults(query, items))
		},
	)
}

// FormatResults renders search hits as a numbered summary.
func FormatResults(query string, items []adapter.Result) string {
	if len(items) == 0 {
		return fmt.Sprintf("Search for '%s' returned no relevant results.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "General web search completed. Summarized results for '%s':\n\n", query)
	for i, it := range items {
		title := it.Title
		if title == "" {
			title = "No Title"
		}
		snippet := it.Snippet
		if snippet == "" {
			snippet = "No Snippet"
		}
		fmt.Fprintf(&b, "Result %d. Title: %s. Snippet: %s", i+1, title, snippet)
		if it.URL != "" {
			fmt.Fprintf(&b, " (%s)", it.URL)
		}
		b.WriteString("\n")
	}
	return b.String()
}
