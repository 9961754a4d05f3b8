// Package feed defines the canonical post shape shared by every provider and
// the combine step that folds per-subscription posts into one ordered feed.
package feed

import (
	"fmt"
	"maps"
	"strings"
)

// Type identifies the provider behind a subscription.
type Type string

const (
	TypeFacebook Type = "facebook" // facebook engineering blogs (RSS 2.0)
	TypeKonkle   Type = "konkle"   // konkle posts JSON API
	TypeRSS      Type = "rss"      // any RSS, Atom or JSON Feed URL
)

// Types lists every supported provider type.
var Types = []Type{TypeFacebook, TypeKonkle, TypeRSS}

// ParseType converts a configuration value into a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown subscription type %q", s)
}

// Subscription identifies one external feed. It is created from static
// configuration and never mutated during aggregation.
type Subscription struct {
	Name string            `json:"name" yaml:"name" toml:"name"`
	URL  string            `json:"url" yaml:"url" toml:"url"`
	Type Type              `json:"type" yaml:"type" toml:"type"`
	Meta map[string]string `json:"meta,omitempty" yaml:"meta,omitempty" toml:"meta,omitempty"`
}

// Label returns the name, or the URL when the subscription is unnamed.
func (s Subscription) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

func (s Subscription) clone() *Subscription {
	c := s
	c.Meta = maps.Clone(s.Meta)
	return &c
}

// Post is the canonical, provider-agnostic post.
type Post struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Author      *string   `json:"author"`
	PubDate     Timestamp `json:"pubDate"`
	GUID        string    `json:"guid"`
	Description string    `json:"description"`

	// Subscription is attached by CombineFeeds, never by normalization.
	Subscription *Subscription `json:"subscription,omitempty"`
}

// AuthorName returns the author or an empty string.
func (p Post) AuthorName() string {
	if p.Author == nil {
		return ""
	}
	return *p.Author
}

// FeedResult is one subscription together with its normalized posts.
type FeedResult struct {
	Subscription
	Posts []Post
}
