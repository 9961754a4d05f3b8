package source

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// PreviewLength is the maximum rune length of a post description before "...".
const PreviewLength = 300

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	spacesRe     = regexp.MustCompile(`[ \t\r\f\v]+`)
)

const blockSelector = "p, div, li, ul, ol, h1, h2, h3, h4, h5, h6, blockquote, pre, tr, table, section, article"

// Preview turns an HTML body into an escaped text preview: block elements
// become line breaks, entities stay escaped, and text longer than maxRunes
// is cut on a word boundary and suffixed with "...". Runs of blank lines
// collapse to a single blank line.
func Preview(body string, maxRunes int) string {
	text := htmlText(body)
	text = normalizeWhitespace(text)
	text = truncateWords(text, maxRunes)
	return html.EscapeString(text)
}

func htmlText(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return html.UnescapeString(htmlTagRe.ReplaceAllString(body, " "))
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return doc.Text()
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacesRe.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func truncateWords(s string, maxRunes int) string {
	runes := []rune(s)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return s
	}
	cut := runes[:maxRunes]
	if !unicode.IsSpace(runes[maxRunes]) {
		if i := lastSpace(cut); i > maxRunes/2 {
			cut = cut[:i]
		}
	}
	return strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(".,;:", r)
	}) + "..."
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}
