package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/subfeed/internal/feed"
)

const (
	konklePostsPath    = "api/posts"
	konkleDefaultLimit = 20
)

// KonkleEntry is one record of the konkle posts API.
type KonkleEntry struct {
	ID          string        `json:"id"`
	Headline    string        `json:"headline"`
	Permalink   string        `json:"permalink"`
	Byline      *KonkleByline `json:"byline,omitempty"`
	PublishedAt string        `json:"published_at"`
	Excerpt     string        `json:"excerpt"`
	BodyHTML    string        `json:"body_html,omitempty"`
}

// KonkleByline names a konkle post's author.
type KonkleByline struct {
	Name   string `json:"name"`
	Handle string `json:"handle,omitempty"`
}

func (KonkleEntry) Provider() feed.Type { return feed.TypeKonkle }

type konkleListing struct {
	Posts []KonkleEntry `json:"posts"`
}

type konkleProvider struct{}

func (konkleProvider) Type() feed.Type { return feed.TypeKonkle }

// konkleURL derives the posts endpoint from the subscription base URL.
// Meta "limit" overrides the page size.
func konkleURL(sub feed.Subscription) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sub.URL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", sub.URL)
	}

	limit := konkleDefaultLimit
	if raw := sub.Meta["limit"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return "", fmt.Errorf("meta limit %q: want a positive integer", raw)
		}
		limit = n
	}

	u.Path = path.Join("/", u.Path, konklePostsPath)
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (konkleProvider) Request(ctx context.Context, client *http.Client, sub feed.Subscription) ([]RawPost, error) {
	endpoint, err := konkleURL(sub)
	if err != nil {
		return nil, &feed.FeedUnavailableError{Subscription: sub, Err: err}
	}

	header := http.Header{"Accept": {"application/json"}}
	if key := sub.Meta["api_key"]; key != "" {
		header.Set("Authorization", "Bearer "+key)
	}

	body, err := get(ctx, client, sub, endpoint, header)
	if err != nil {
		return nil, err
	}

	var listing konkleListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, &feed.FeedUnavailableError{Subscription: sub, Err: fmt.Errorf("decode posts: %w", err)}
	}

	raws := make([]RawPost, 0, len(listing.Posts))
	for _, entry := range listing.Posts {
		raws = append(raws, entry)
	}
	return raws, nil
}

func (konkleProvider) Transform(raw RawPost) (feed.Post, error) {
	entry, ok := raw.(KonkleEntry)
	if !ok {
		return feed.Post{}, &feed.MalformedPostError{
			Provider: feed.TypeKonkle, Field: "record", Err: fmt.Errorf("unexpected raw post %T", raw),
		}
	}

	link := strings.TrimSpace(entry.Permalink)
	if link == "" {
		return feed.Post{}, &feed.MalformedPostError{Provider: feed.TypeKonkle, Ref: entry.ID, Field: "permalink"}
	}

	if strings.TrimSpace(entry.PublishedAt) == "" {
		return feed.Post{}, &feed.MalformedPostError{
			Provider: feed.TypeKonkle, Ref: link, Field: "published_at", Err: errNoDate,
		}
	}
	published, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.PublishedAt))
	if err != nil {
		return feed.Post{}, &feed.MalformedPostError{Provider: feed.TypeKonkle, Ref: link, Field: "published_at", Err: err}
	}

	var author *string
	if entry.Byline != nil {
		if name := strings.TrimSpace(entry.Byline.Name); name != "" {
			author = &name
		}
	}

	guid := strings.TrimSpace(entry.ID)
	if guid == "" {
		guid = link
	}

	body := entry.Excerpt
	if strings.TrimSpace(body) == "" {
		body = entry.BodyHTML
	}

	return feed.Post{
		Title:       strings.TrimSpace(entry.Headline),
		Link:        link,
		Author:      author,
		PubDate:     feed.NewTimestamp(published),
		GUID:        guid,
		Description: Preview(body, PreviewLength),
	}, nil
}
