package filings

import (
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	contextChars   = 100
	matchesPerFile = 3
	shownPerFile   = 2
	snippetLimit   = 300
)

// Mention is the keyword context found in one filing.
type Mention struct {
	Form     string
	File     string
	Contexts []string
}

// FindMentions returns up to three snippets per document containing keyword,
// matched case-insensitively with up to 100 characters of context on each
// side, never crossing a line break.
func FindMentions(docs []Document, keyword string) ([]Mention, error) {
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(keyword))
	if err != nil {
		return nil, err
	}

	var out []Mention
	for _, doc := range docs {
		data, err := os.ReadFile(doc.Path)
		if err != nil {
			continue
		}
		content := strings.ToValidUTF8(string(data), "")

		locs := re.FindAllStringIndex(content, matchesPerFile)
		if len(locs) == 0 {
			continue
		}

		m := Mention{Form: doc.Form, File: doc.Name}
		for _, loc := range locs {
			m.Contexts = append(m.Contexts, strings.TrimSpace(window(content, loc[0], loc[1])))
		}
		out = append(out, m)
	}
	return out, nil
}

// window expands [start,end) by up to contextChars runes each way within the line.
func window(s string, start, end int) string {
	lo := start
	for n := 0; n < contextChars && lo > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(s[:lo])
		if s[lo-size] == '\n' {
			break
		}
		lo -= size
	}

	hi := end
	for n := 0; n < contextChars && hi < len(s); n++ {
		_, size := utf8.DecodeRuneInString(s[hi:])
		if s[hi] == '\n' {
			break
		}
		hi += size
	}
	return s[lo:hi]
}

// Clip collapses whitespace and truncates a snippet for display.
func Clip(snippet string) string {
	clean := strings.Join(strings.Fields(snippet), " ")
	if utf8.RuneCountInString(clean) > snippetLimit {
		runes := []rune(clean)
		clean = string(runes[:snippetLimit]) + "..."
	}
	return clean
}

// CountMentions counts case-insensitive occurrences of each keyword across
// every document.
func CountMentions(docs []Document, keywords []string) map[string]int {
	var all strings.Builder
	for _, doc := range docs {
		data, err := os.ReadFile(doc.Path)
		if err != nil {
			continue
		}
		all.WriteString(strings.ToLower(string(data)))
		all.WriteByte('\n')
	}

	corpus := all.String()
	counts := make(map[string]int, len(keywords))
	for _, k := range keywords {
		counts[k] = strings.Count(corpus, strings.ToLower(k))
	}
	return counts
}

// Level grades the mention count of a single keyword.
func Level(count int) string {
	switch {
	case count > 10:
		return "HIGH"
	case count > 3:
		return "MODERATE"
	default:
		return "LOW"
	}
}

// OverallLevel grades the total mentions across all keywords.
func OverallLevel(total int) string {
	switch {
	case total > 20:
		return "HIGH - Multiple significant risk factors disclosed"
	case total > 5:
		return "MODERATE - Some material risks disclosed"
	default:
		return "LOW - Minimal formal risk disclosures for searched terms"
	}
}
