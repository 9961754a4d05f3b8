package digest

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/subfeed/internal/feed"
)

// MarkdownFormatter formats a digest as Markdown grouped by publication day.
type MarkdownFormatter struct{}

// NewMarkdown creates a Markdown formatter.
func NewMarkdown() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format writes the digest as Markdown to w.
func (f *MarkdownFormatter) Format(w io.Writer, input Input) error {
	fmt.Fprintf(w, "# subfeed\n\n")
	fmt.Fprintf(w, "%d subscriptions, %d posts\n\n", input.Subscriptions, len(input.Posts))

	if len(input.Posts) == 0 {
		fmt.Fprintln(w, "No posts found.")
	}

	day := ""
	for _, p := range input.Posts {
		if d := p.PubDate.UTC().Format("2006-01-02"); d != day {
			day = d
			fmt.Fprintf(w, "## %s\n\n", day)
		}
		f.writeItem(w, p)
	}

	if len(input.Failed) > 0 {
		fmt.Fprintf(w, "*Unavailable: %s*\n", strings.Join(input.Failed, ", "))
	}

	return nil
}

func (f *MarkdownFormatter) writeItem(w io.Writer, p feed.Post) {
	title := plainText(p.Title)
	if title == "" {
		title = p.Link
	}

	fmt.Fprintf(w, "### [%s](%s)\n\n", title, p.Link)

	meta := []string{subscriptionName(p), p.PubDate.UTC().Format("15:04")}
	if author := p.AuthorName(); author != "" {
		meta = append(meta, author)
	}
	fmt.Fprintf(w, "_%s_\n\n", strings.Join(meta, " · "))

	if desc := plainText(p.Description); desc != "" {
		for _, line := range strings.Split(desc, "\n") {
			fmt.Fprintf(w, "> %s\n", line)
		}
		fmt.Fprintln(w)
	}
}
