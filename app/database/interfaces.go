package database

import (
	"context"

	"github.com/lysyi3m/postcard/app/feed"
)

// PostRepository is the date-keyed post cache. ReplacePosts swaps the whole
// set atomically: readers see either the old posts or the new ones.
type PostRepository interface {
	GetPost(ctx context.Context, date feed.Date) (*feed.Post, error)
	ReplacePosts(ctx context.Context, posts map[feed.Date]feed.Post) error
	CountPosts(ctx context.Context) (int, error)
	// ListPosts returns up to limit posts, newest first. limit <= 0 means all.
	ListPosts(ctx context.Context, limit int) ([]feed.DatedPost, error)
}

type StateRepository interface {
	GetAutoPostState(ctx context.Context) (*AutoPostState, error)
	SetLastPublished(ctx context.Context, date feed.Date) error
	SetPublishHour(ctx context.Context, hour int) error
}

type DestinationRepository interface {
	SetDestination(ctx context.Context, guildID, channelID string) error
	ClearDestination(ctx context.Context, guildID string) error
	ListDestinations(ctx context.Context) ([]Destination, error)
}
