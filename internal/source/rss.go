package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/subfeed/internal/feed"
)

// RSSItem is a raw RSS, Atom or JSON Feed entry as parsed by gofeed.
// Kind is the subscription type it was fetched for.
type RSSItem struct {
	Kind feed.Type    `json:"kind"`
	Item *gofeed.Item `json:"item"`
}

func (r RSSItem) Provider() feed.Type { return r.Kind }

// rssProvider serves facebook blogs and generic feeds. The request is a
// plain GET of the subscription URL.
type rssProvider struct {
	kind feed.Type
}

func (p rssProvider) Type() feed.Type { return p.kind }

func (p rssProvider) Request(ctx context.Context, client *http.Client, sub feed.Subscription) ([]RawPost, error) {
	body, err := get(ctx, client, sub, sub.URL, http.Header{
		"Accept": {"application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8"},
	})
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &feed.FeedUnavailableError{Subscription: sub, Err: fmt.Errorf("parse feed: %w", err)}
	}

	raws := make([]RawPost, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		raws = append(raws, RSSItem{Kind: p.kind, Item: item})
	}
	return raws, nil
}

func (p rssProvider) Transform(raw RawPost) (feed.Post, error) {
	r, ok := raw.(RSSItem)
	if !ok || r.Item == nil {
		return feed.Post{}, &feed.MalformedPostError{
			Provider: p.kind, Field: "record", Err: fmt.Errorf("unexpected raw post %T", raw),
		}
	}
	item := r.Item

	link := strings.TrimSpace(item.Link)
	if link == "" {
		return feed.Post{}, &feed.MalformedPostError{Provider: p.kind, Ref: item.GUID, Field: "link"}
	}

	published, err := itemPublishedTime(item)
	if err != nil {
		return feed.Post{}, &feed.MalformedPostError{Provider: p.kind, Ref: link, Field: "pubDate", Err: err}
	}

	body := item.Description
	if strings.TrimSpace(body) == "" {
		body = item.Content
	}

	return feed.Post{
		Title:       strings.TrimSpace(item.Title),
		Link:        link,
		Author:      itemAuthor(item),
		PubDate:     feed.NewTimestamp(published),
		GUID:        itemID(item, link),
		Description: Preview(body, PreviewLength),
	}, nil
}

var errNoDate = errors.New("missing publication date")

// itemPublishedTime prefers the published date and falls back to updated.
// A date string gofeed could not parse is an error, as is no date at all.
func itemPublishedTime(item *gofeed.Item) (time.Time, error) {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed, nil
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed, nil
	}
	if raw := strings.TrimSpace(item.Published); raw != "" {
		return time.Time{}, fmt.Errorf("unparseable date %q", raw)
	}
	if raw := strings.TrimSpace(item.Updated); raw != "" {
		return time.Time{}, fmt.Errorf("unparseable date %q", raw)
	}
	return time.Time{}, errNoDate
}

func itemAuthor(item *gofeed.Item) *string {
	people := item.Authors
	if item.Author != nil {
		people = append([]*gofeed.Person{item.Author}, people...)
	}
	for _, person := range people {
		if person == nil {
			continue
		}
		if name := strings.TrimSpace(person.Name); name != "" {
			return &name
		}
		if email := strings.TrimSpace(person.Email); email != "" {
			return &email
		}
	}
	return nil
}

func itemID(item *gofeed.Item, link string) string {
	if guid := strings.TrimSpace(item.GUID); guid != "" {
		return guid
	}
	return link
}
