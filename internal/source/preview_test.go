package source

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "plain text", "plain text"},
		{"simple tags", "<p>hello</p>", "hello"},
		{"paragraphs", "<p>one</p><p>two</p>", "one\ntwo"},
		{"line break", "line<br/>break", "line\nbreak"},
		{"entities stay escaped", "a &amp; b", "a &amp; b"},
		{"apostrophe", "we&#39;re", "we&#39;re"},
		{"script dropped", "<p>keep</p><script>alert(1)</script>", "keep"},
		{"whitespace collapsed", "<div>  many    spaces  </div>", "many spaces"},
		{"blank lines capped", "a<br><br><br><br>b", "a\n\nb"},
		{"source blank lines between paragraphs", "<p>One.</p>\n\n<p>Two.</p>", "One.\n\nTwo."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preview(tt.input, PreviewLength); got != tt.want {
				t.Errorf("Preview(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"word word", 4, "word..."},
		{strings.Repeat("word ", 100), 20, "word word word word..."},
		{"sentence ends here. And more", 19, "sentence ends here..."},
		{"unbrokenstringwithoutspaces", 10, "unbrokenst..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := truncateWords(tt.input, tt.n); got != tt.want {
			t.Errorf("truncateWords(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestPreviewLimitsLength(t *testing.T) {
	long := "<p>" + strings.Repeat("lorem ipsum ", 200) + "</p>"
	got := Preview(long, PreviewLength)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-10:])
	}
	if n := utf8.RuneCountInString(got); n > PreviewLength+3 {
		t.Errorf("preview has %d runes, want at most %d", n, PreviewLength+3)
	}
}
