package report

import (
	"context"
	"strings"

	"advisor/internal/tools"
)

type markdownArgs struct {
	ReportContent string `json:"report_content"`
	FileName      string `json:"file_name"`
}

// Format prefixes content with a "# <fileName>" title unless it already
// opens with a Markdown heading. Empty content is returned unchanged.
func Format(content, fileName string) string {
	if content == "" || strings.HasPrefix(content, "#") {
		return content
	}
	return "# " + fileName + "\n\n" + content
}

// NewMarkdownTool formats report text as Markdown for display. Nothing is written to disk.
func NewMarkdownTool() tools.Tool {
	return tools.Typed(
		tools.MarkdownGenerator,
		"Formats raw text content into professional Markdown and returns it for display. The file name is used as the title, no file is saved.",
		tools.Object([]tools.Property{
			{Name: "report_content", Description: "The full text content of the report, ready for formatting"},
			{Name: "file_name", Description: "The desired document name, used as the title"},
		}),
		func(_ context.Context, args markdownArgs) tools.Result {
			return tools.OK(Format(args.ReportContent, args.FileName))
		},
	)
}
