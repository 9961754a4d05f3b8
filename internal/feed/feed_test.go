package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"facebook", TypeFacebook, false},
		{"Konkle", TypeKonkle, false},
		{" rss ", TypeRSS, false},
		{"twitter", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseType(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseType(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSubscriptionLabel(t *testing.T) {
	if got := (Subscription{Name: "blog", URL: "https://x"}).Label(); got != "blog" {
		t.Errorf("label = %q, want blog", got)
	}
	if got := (Subscription{URL: "https://x"}).Label(); got != "https://x" {
		t.Errorf("label = %q, want URL", got)
	}
}

func TestPostJSON(t *testing.T) {
	post := Post{
		Title:       "New React Developer Tools",
		Link:        "https://facebook.github.io/react/blog/2015/09/02/new-react-developer-tools.html",
		PubDate:     NewTimestamp(time.Date(2015, 9, 2, 7, 0, 0, 0, time.UTC)),
		GUID:        "https://facebook.github.io/react/blog/2015/09/02/new-react-developer-tools.html",
		Description: "A month ago...",
	}

	data, err := json.Marshal(post)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)

	for _, want := range []string{
		`"author":null`,
		`"pubDate":"2015-09-02T07:00:00.000Z"`,
		`"title":"New React Developer Tools"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("json %s missing %s", got, want)
		}
	}
	if strings.Contains(got, "subscription") {
		t.Errorf("unannotated post should omit subscription: %s", got)
	}

	var back Post
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.PubDate.Equal(post.PubDate.Time) {
		t.Errorf("pubDate round trip = %v, want %v", back.PubDate, post.PubDate)
	}
	if back.Author != nil {
		t.Errorf("author = %v, want nil", back.Author)
	}
}

func TestTimestampNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("PDT", -7*3600)
	ts := NewTimestamp(time.Date(2015, 9, 2, 0, 0, 0, 0, loc))
	if got := ts.String(); got != "2015-09-02T07:00:00.000Z" {
		t.Errorf("timestamp = %s, want 2015-09-02T07:00:00.000Z", got)
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	malformed := fmt.Errorf("wrap: %w", &MalformedPostError{
		Provider: TypeKonkle, Ref: "42", Field: "published_at", Err: errors.New("empty"),
	})
	if !errors.Is(malformed, ErrMalformedPost) {
		t.Error("malformed error should match ErrMalformedPost")
	}
	if errors.Is(malformed, ErrFeedUnavailable) {
		t.Error("malformed error should not match ErrFeedUnavailable")
	}
	var mpe *MalformedPostError
	if !errors.As(malformed, &mpe) || mpe.Field != "published_at" {
		t.Errorf("errors.As failed or wrong field: %v", mpe)
	}

	unavailable := &FeedUnavailableError{Subscription: reactBlog, Status: 503}
	if !errors.Is(unavailable, ErrFeedUnavailable) {
		t.Error("unavailable error should match ErrFeedUnavailable")
	}
	if !strings.Contains(unavailable.Error(), "HTTP 503") {
		t.Errorf("error text %q missing status", unavailable.Error())
	}

	unknown := &FeedUnavailableError{Subscription: reactBlog, Err: ErrUnknownProvider}
	if !errors.Is(unknown, ErrUnknownProvider) {
		t.Error("unwrap should expose ErrUnknownProvider")
	}
}
