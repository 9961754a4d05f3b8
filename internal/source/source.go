// Package source retrieves raw posts for a subscription and maps them into
// the canonical feed.Post. Each subscription type has one Provider.
package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ppiankov/subfeed/internal/feed"
)

// RawPost is a post record in its provider's native shape. Provider reports
// which mapping TransformPost applies to it.
type RawPost interface {
	Provider() feed.Type
}

// Provider fetches and normalizes one kind of feed.
type Provider interface {
	// Type returns the subscription type handled by this provider.
	Type() feed.Type

	// Request performs the provider call for sub and returns its posts in
	// the order the provider sent them.
	Request(ctx context.Context, client *http.Client, sub feed.Subscription) ([]RawPost, error)

	// Transform maps one raw post into a canonical post without a
	// subscription attached.
	Transform(raw RawPost) (feed.Post, error)
}

var providers = map[feed.Type]Provider{
	feed.TypeFacebook: rssProvider{kind: feed.TypeFacebook},
	feed.TypeRSS:      rssProvider{kind: feed.TypeRSS},
	feed.TypeKonkle:   konkleProvider{},
}

// Lookup returns the provider registered for t.
func Lookup(t feed.Type) (Provider, error) {
	p, ok := providers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", feed.ErrUnknownProvider, t)
	}
	return p, nil
}

// TransformPost normalizes raw using the provider it is tagged with.
// It is pure: the same input always yields the same post.
func TransformPost(raw RawPost) (feed.Post, error) {
	if raw == nil {
		return feed.Post{}, &feed.MalformedPostError{Field: "record", Err: fmt.Errorf("nil raw post")}
	}
	p, err := Lookup(raw.Provider())
	if err != nil {
		return feed.Post{}, &feed.MalformedPostError{Provider: raw.Provider(), Field: "provider", Err: err}
	}
	return p.Transform(raw)
}

// TransformPosts normalizes every raw post, failing on the first malformed one.
func TransformPosts(raws []RawPost) ([]feed.Post, error) {
	posts := make([]feed.Post, 0, len(raws))
	for i, raw := range raws {
		post, err := TransformPost(raw)
		if err != nil {
			return nil, fmt.Errorf("post %d: %w", i, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}
