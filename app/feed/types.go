package feed

import (
	"errors"
	"fmt"
	"time"
)

// Entry is a single item as it came out of the feed, before normalization.
type Entry struct {
	Title     string
	Link      string
	Summary   string // raw HTML
	Published *time.Time
}

// Post is a normalized feed entry, keyed externally by its publication Date.
type Post struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Summary string `json:"summary"` // raw HTML as published
	Body    string `json:"body"`    // Summary with images removed, rendered as markdown
}

// DatedPost pairs a post with the date it is keyed by.
type DatedPost struct {
	Date Date
	Post Post
}

var ErrMalformedEntry = errors.New("malformed feed entry")

// FetchError reports a feed that could not be downloaded or parsed.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
