package tasks

import (
	"context"

	"github.com/lysyi3m/postcard/app/postcard"
)

// AutoPoster runs one auto-post cycle. Implemented by *postcard.AutoPoster.
type AutoPoster interface {
	Run(ctx context.Context) (postcard.Result, error)
}

// Refresher reloads the post cache from the feed. Implemented by
// *postcard.Resolver.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}
