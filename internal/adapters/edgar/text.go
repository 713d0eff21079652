package edgar

import (
	"bufio"
	"io"
	"strings"

	"golang.org/x/net/html"

	"advisor/pkg/errors"
)

// blockTags end a line of extracted text.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// HTMLToText streams the visible text of an HTML document to w, one block per line.
func HTMLToText(r io.Reader, w io.Writer) error {
	out := bufio.NewWriter(w)
	z := html.NewTokenizer(r)
	skip := 0
	lineHasText := false

	newline := func() {
		if lineHasText {
			_ = out.WriteByte('\n')
			lineHasText = false
		}
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && err != io.EOF {
				return errors.Wrapf(errors.ErrExternal, "parse filing html: %v", err)
			}
			newline()
			return out.Flush()

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
			}
			if blockTags[tag] {
				newline()
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			if blockTags[tag] {
				newline()
			}

		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := strings.Join(strings.Fields(string(z.Text())), " ")
			if text == "" {
				continue
			}
			if lineHasText {
				_ = out.WriteByte(' ')
			}
			_, _ = out.WriteString(text)
			lineHasText = true
		}
	}
}
