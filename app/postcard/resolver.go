package postcard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/postcard/app/database"
	"github.com/lysyi3m/postcard/app/feed"
)

// Resolver is a read-through cache over the feed. A lookup that misses the
// cache triggers one full refresh and a second lookup.
type Resolver struct {
	posts      database.PostRepository
	source     FeedSource
	normalizer Normalizer
	feedURL    string
	now        func() time.Time
	refreshes  singleflight.Group
}

func NewResolver(posts database.PostRepository, source FeedSource, normalizer Normalizer, feedURL string, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		posts:      posts,
		source:     source,
		normalizer: normalizer,
		feedURL:    feedURL,
		now:        now,
	}
}

// Today returns the current UTC date and its post, or a nil post if the
// feed has not published it yet. Fetch failures are returned as
// *feed.FetchError.
func (r *Resolver) Today(ctx context.Context) (feed.Date, *feed.Post, error) {
	date := r.Date()
	post, err := r.ForDate(ctx, date)
	return date, post, err
}

// Date is the current UTC calendar date.
func (r *Resolver) Date() feed.Date {
	return feed.DateOf(r.now())
}

func (r *Resolver) ForDate(ctx context.Context, date feed.Date) (*feed.Post, error) {
	post, err := r.posts.GetPost(ctx, date)
	if err != nil {
		return nil, err
	}
	if post != nil {
		return post, nil
	}

	slog.Info("Post not cached, refreshing feed", "date", date.String())

	if _, err := r.Refresh(ctx); err != nil {
		return nil, err
	}

	return r.posts.GetPost(ctx, date)
}

// Lookup reads the cache only.
func (r *Resolver) Lookup(ctx context.Context, date feed.Date) (*feed.Post, error) {
	return r.posts.GetPost(ctx, date)
}

// Refresh replaces the whole cache with the feed's current entries and
// returns how many posts were stored. Concurrent callers share one fetch;
// the fetch outlives any single caller's cancellation.
func (r *Resolver) Refresh(ctx context.Context) (int, error) {
	shared := context.WithoutCancel(ctx)
	ch := r.refreshes.DoChan("refresh", func() (interface{}, error) {
		return r.refresh(shared)
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		if res.Shared {
			slog.Debug("Joined in-flight feed refresh")
		}
		return res.Val.(int), nil
	}
}

func (r *Resolver) refresh(ctx context.Context) (int, error) {
	start := time.Now()

	entries, err := r.source.Fetch(ctx, r.feedURL)
	if err != nil {
		return 0, err
	}

	posts, err := r.normalizer.Run(entries)
	if err != nil {
		return 0, fmt.Errorf("failed to normalize feed entries: %w", err)
	}

	if err := r.posts.ReplacePosts(ctx, posts); err != nil {
		return 0, fmt.Errorf("failed to store posts: %w", err)
	}

	slog.Info("Feed refreshed",
		"url", r.feedURL,
		"entries", len(entries),
		"posts", len(posts),
		"duration", time.Since(start))

	return len(posts), nil
}
