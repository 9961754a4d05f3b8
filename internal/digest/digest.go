package digest

import (
	"html"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/subfeed/internal/feed"
)

// Input is the full input for a digest formatter.
type Input struct {
	Posts         []feed.Post // combined feed, newest first
	Subscriptions int         // number of subscriptions aggregated
	Failed        []string    // labels of subscriptions that could not be fetched
	GeneratedAt   time.Time
}

// Formatter writes a formatted digest to w.
type Formatter interface {
	Format(w io.Writer, input Input) error
}

func subscriptionName(p feed.Post) string {
	if p.Subscription == nil {
		return ""
	}
	return p.Subscription.Label()
}

// plainText turns a stored preview back into display text.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}

func firstLine(s string, max int) string {
	s = plainText(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if max > 0 && len(r) > max {
		return strings.TrimSpace(string(r[:max])) + "..."
	}
	return s
}
