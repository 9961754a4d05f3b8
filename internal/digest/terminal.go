package digest

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/subfeed/internal/feed"
)

const previewWidth = 100

// TerminalFormatter formats a digest for terminal output.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

// Format writes one block per post, newest first.
func (f *TerminalFormatter) Format(w io.Writer, input Input) error {
	header := fmt.Sprintf("subfeed - %d subscriptions, %d posts", input.Subscriptions, len(input.Posts))
	fmt.Fprintln(w, f.bold(header))
	fmt.Fprintln(w)

	if len(input.Posts) == 0 {
		fmt.Fprintln(w, "No posts found.")
	}

	for _, p := range input.Posts {
		f.writeItem(w, p)
	}

	if len(input.Failed) > 0 {
		fmt.Fprintln(w, f.yellow("Unavailable: "+strings.Join(input.Failed, ", ")))
	}

	return nil
}

func (f *TerminalFormatter) writeItem(w io.Writer, p feed.Post) {
	title := plainText(p.Title)
	if title == "" {
		title = "(untitled)"
	}

	fmt.Fprintf(w, "  %s %s %s\n",
		f.dim(p.PubDate.UTC().Format("2006-01-02 15:04")),
		f.green("["+subscriptionName(p)+"]"),
		f.bold(title),
	)
	if author := p.AuthorName(); author != "" {
		fmt.Fprintf(w, "      %s\n", f.dim("by "+author))
	}
	if preview := firstLine(p.Description, previewWidth); preview != "" {
		fmt.Fprintf(w, "      %s\n", preview)
	}
	if p.Link != "" {
		fmt.Fprintf(w, "      %s\n", f.dim(p.Link))
	}
	fmt.Fprintln(w)
}

// ANSI helpers, no-op when color=false.

func (f *TerminalFormatter) bold(s string) string {
	if !f.color {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func (f *TerminalFormatter) green(s string) string {
	if !f.color {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func (f *TerminalFormatter) yellow(s string) string {
	if !f.color {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

func (f *TerminalFormatter) dim(s string) string {
	if !f.color {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}
