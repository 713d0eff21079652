package templates

import (
	"strings"
	"text/template"
)

// FuncMap returns the helper functions available inside prompt templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"join":   strings.Join,
		"upper":  strings.ToUpper,
		"bullet": Bullets,
		"indent": Indent,
	}
}

// Bullets renders items as a Markdown bullet list, one per line.
func Bullets(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// Indent prefixes every non-empty line of text with n spaces.
func Indent(n int, text string) string {
	if n <= 0 || text == "" {
		return text
	}
	pad := strings.Repeat(" ", n)
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}
