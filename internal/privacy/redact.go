// Package privacy scrubs sensitive text from posts before they are stored.
package privacy

import (
	"fmt"
	"html"
	"regexp"

	"github.com/ppiankov/subfeed/internal/feed"
)

const redactedPlaceholder = "[REDACTED]"

// Redactor replaces every match of its patterns with [REDACTED].
// A nil Redactor leaves text unchanged.
type Redactor struct {
	patterns []*regexp.Regexp
}

// New compiles patterns into a Redactor.
func New(patterns []string) (*Redactor, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Redactor{patterns: compiled}, nil
}

// Text redacts a single string.
func (r *Redactor) Text(text string) string {
	if r == nil {
		return text
	}
	for _, re := range r.patterns {
		text = re.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// Posts returns redacted copies of posts. Titles and descriptions are
// scrubbed; links and guids are left intact so posts stay addressable.
// Descriptions hold escaped HTML text, so patterns are matched against the
// unescaped form and the result is escaped again.
func (r *Redactor) Posts(posts []feed.Post) []feed.Post {
	if r == nil || len(r.patterns) == 0 {
		return posts
	}
	out := make([]feed.Post, len(posts))
	for i, p := range posts {
		p.Title = r.Text(p.Title)
		p.Description = html.EscapeString(r.Text(html.UnescapeString(p.Description)))
		out[i] = p
	}
	return out
}
