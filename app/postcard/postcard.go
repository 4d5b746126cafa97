// Package postcard holds the publication logic: resolving today's post from
// the cache or the feed, the once-a-day auto-post state machine, and the
// command operations exposed to chat and HTTP.
package postcard

import (
	"context"

	"github.com/lysyi3m/postcard/app/feed"
)

const (
	SiteURL  = "https://www.mezzacotta.net/postcard/"
	FeedURL  = "https://www.mezzacotta.net/postcard/rss.xml"
	ImageURL = "https://www.mezzacotta.net/postcard/comics/comic.png"
)

// Message is a rendered chat message: an embed with a title, markdown body
// and image.
type Message struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Sender delivers a message to a chat channel.
type Sender interface {
	Send(ctx context.Context, channelID string, msg Message) error
}

// FeedSource fetches the entries currently exposed by a feed.
type FeedSource interface {
	Fetch(ctx context.Context, url string) ([]feed.Entry, error)
}

// Normalizer turns fetched entries into date-keyed posts.
type Normalizer interface {
	Run(entries []feed.Entry) (map[feed.Date]feed.Post, error)
}

// Render builds the embed for a post.
func Render(post feed.Post) Message {
	return Message{
		Title:       post.Title,
		Description: post.Body,
		URL:         post.Link,
		ImageURL:    ImageURL,
	}
}
