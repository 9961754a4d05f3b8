package digest

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/subfeed/internal/feed"
)

// JSONFormatter writes the combined feed as a JSON array of posts.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes the posts as JSON to w.
func (f *JSONFormatter) Format(w io.Writer, input Input) error {
	posts := input.Posts
	if posts == nil {
		posts = []feed.Post{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(posts)
}
