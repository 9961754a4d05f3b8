// Package aggregate fetches every configured subscription concurrently and
// folds the normalized posts into one feed ordered newest first.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/subfeed/internal/feed"
	"github.com/ppiankov/subfeed/internal/logger"
	"github.com/ppiankov/subfeed/internal/source"
)

// Fetcher retrieves the raw posts of one subscription.
type Fetcher interface {
	RequestPosts(ctx context.Context, sub feed.Subscription) ([]source.RawPost, error)
}

// Transformer normalizes one raw post.
type Transformer func(source.RawPost) (feed.Post, error)

// Aggregator combines the posts of a fixed subscription list.
type Aggregator struct {
	subs        []feed.Subscription
	fetcher     Fetcher
	transform   Transformer
	concurrency int
	partial     bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency caps simultaneous fetches. Zero or less means unlimited.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) { a.concurrency = n }
}

// WithPartial makes Collect report failed subscriptions instead of failing
// the whole run. GetSubscriptionFeed is unaffected.
func WithPartial(partial bool) Option {
	return func(a *Aggregator) { a.partial = partial }
}

// WithTransformer replaces source.TransformPost.
func WithTransformer(t Transformer) Option {
	return func(a *Aggregator) { a.transform = t }
}

// New creates an Aggregator over subs. The slice is copied.
func New(subs []feed.Subscription, fetcher Fetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		subs:      append([]feed.Subscription(nil), subs...),
		fetcher:   fetcher,
		transform: source.TransformPost,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Subscriptions returns a copy of the configured subscriptions.
func (a *Aggregator) Subscriptions() []feed.Subscription {
	return append([]feed.Subscription(nil), a.subs...)
}

// Failure records one subscription that could not be aggregated.
type Failure struct {
	Subscription feed.Subscription
	Err          error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Subscription.Label(), f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Result is the outcome of Collect.
type Result struct {
	Posts    []feed.Post
	Failures []Failure
	Duration time.Duration
}

// GetSubscriptionFeed returns the posts of every subscription, annotated
// and ordered newest first. Any single failure fails the call and no posts
// are returned.
func (a *Aggregator) GetSubscriptionFeed(ctx context.Context) ([]feed.Post, error) {
	res, err := a.collect(ctx, false)
	if err != nil {
		return nil, err
	}
	return res.Posts, nil
}

// Collect aggregates like GetSubscriptionFeed. With WithPartial(true) failed
// subscriptions are listed in Result.Failures and the remaining posts are
// returned; otherwise the first failure is returned as the error.
func (a *Aggregator) Collect(ctx context.Context) (Result, error) {
	return a.collect(ctx, a.partial)
}

type fetched struct {
	raws []source.RawPost
	err  error
}

func (a *Aggregator) collect(ctx context.Context, partial bool) (Result, error) {
	start := time.Now()
	results := make([]fetched, len(a.subs))

	g, gctx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, sub := range a.subs {
		g.Go(func() error {
			raws, err := a.fetcher.RequestPosts(gctx, sub)
			if err != nil {
				err = fmt.Errorf("fetch %s: %w", sub.Label(), err)
				if partial {
					results[i].err = err
					return nil
				}
				return err
			}
			results[i].raws = raws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var res Result
	var combined []feed.Post
	for i, sub := range a.subs {
		if results[i].err != nil {
			res.Failures = append(res.Failures, Failure{Subscription: sub, Err: results[i].err})
			logger.L.Warnw("subscription failed", "subscription", sub.Label(), "error", results[i].err)
			continue
		}

		posts, err := a.normalize(sub, results[i].raws)
		if err != nil {
			if !partial {
				return Result{}, err
			}
			res.Failures = append(res.Failures, Failure{Subscription: sub, Err: err})
			logger.L.Warnw("subscription failed", "subscription", sub.Label(), "error", err)
			continue
		}

		combined = feed.CombineFeeds(combined, feed.FeedResult{Subscription: sub, Posts: posts})
	}

	if combined == nil {
		combined = []feed.Post{}
	}
	res.Posts = combined
	res.Duration = time.Since(start)

	logger.L.Infow("aggregated subscriptions",
		"subscriptions", len(a.subs), "posts", len(res.Posts), "failures", len(res.Failures), "took", res.Duration)
	return res, nil
}

func (a *Aggregator) normalize(sub feed.Subscription, raws []source.RawPost) ([]feed.Post, error) {
	posts := make([]feed.Post, 0, len(raws))
	for i, raw := range raws {
		post, err := a.transform(raw)
		if err != nil {
			return nil, fmt.Errorf("normalize %s post %d: %w", sub.Label(), i, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// FailuresError joins failures into one error, or returns nil.
func FailuresError(failures []Failure) error {
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}
