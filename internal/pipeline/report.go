package pipeline

import (
	"regexp"
)

// ReportHeadings are the sections the final report must contain, in order.
var ReportHeadings = []string{
	"Executive Summary",
	"Strategic Rationale & Methodology",
	"Portfolio Recommendation",
	"Security Justifications",
	"Risk Disclosure & Monitoring",
	"Conclusion",
}

var headingPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(ReportHeadings))
	for i, h := range ReportHeadings {
		// Allow any heading level and an optional "1." numbering prefix.
		out[i] = regexp.MustCompile(`(?mi)^#{1,6}[ \t]+(?:\d+\.[ \t]*)?` + regexp.QuoteMeta(h) + `[ \t]*:?[ \t]*$`)
	}
	return out
}()

// MissingHeadings returns the mandated headings absent from report.
func MissingHeadings(report string) []string {
	var missing []string
	for i, re := range headingPatterns {
		if !re.MatchString(report) {
			missing = append(missing, ReportHeadings[i])
		}
	}
	return missing
}
