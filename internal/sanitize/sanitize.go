// Package sanitize turns user supplied post bodies into safe plain text.
package sanitize

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	strict   = bluemonday.StrictPolicy()
	markdown = goldmark.New()
)

// StripHTML removes every tag and attribute from s. Markdown syntax is kept,
// so the stored body still renders on clients. Entities stay escaped, which
// makes StripHTML idempotent: StripHTML(StripHTML(s)) == StripHTML(s).
func StripHTML(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}

// PlainText renders markdown and strips the result down to its text, for
// keyword extraction.
func PlainText(md string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return html.UnescapeString(StripHTML(md))
	}
	// keep block boundaries as whitespace so words from adjacent blocks don't fuse
	rendered := strings.ReplaceAll(buf.String(), "\n", " \n")
	return strings.Join(strings.Fields(html.UnescapeString(StripHTML(rendered))), " ")
}
