// Package richtext turns campaign descriptions, which clients author as
// HTML, into plain text for search and terminal output.
package richtext

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var blockTags = "p, div, br, li, h1, h2, h3, h4, h5, h6, blockquote, pre, tr"

// PlainText strips markup from s. Block elements become line breaks and runs
// of whitespace collapse to a single space. Input without tags is returned
// with whitespace collapsed.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find(blockTags).Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	return collapse(doc.Text())
}

// Excerpt is PlainText cut to at most n runes, ending with "..." when cut.
func Excerpt(s string, n int) string {
	text := PlainText(s)
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	if n <= 3 {
		return string(r[:n])
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
