package postcard

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/lysyi3m/postcard/app/database"
	"github.com/lysyi3m/postcard/app/feed"
)

// memStore is an in-memory implementation of all three repositories.
type memStore struct {
	mu           sync.Mutex
	posts        map[feed.Date]feed.Post
	state        database.AutoPostState
	destinations map[string]string
	markCalls    int
	gets         int
}

func newMemStore() *memStore {
	return &memStore{
		posts:        map[feed.Date]feed.Post{},
		state:        database.AutoPostState{PublishHour: database.DefaultPublishHour},
		destinations: map[string]string{},
	}
}

func (m *memStore) GetPost(_ context.Context, date feed.Date) (*feed.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	post, ok := m.posts[date]
	if !ok {
		return nil, nil
	}
	return &post, nil
}

func (m *memStore) ReplacePosts(_ context.Context, posts map[feed.Date]feed.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = make(map[feed.Date]feed.Post, len(posts))
	for d, p := range posts {
		m.posts[d] = p
	}
	return nil
}

func (m *memStore) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

func (m *memStore) CountPosts(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts), nil
}

func (m *memStore) ListPosts(_ context.Context, limit int) ([]feed.DatedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []feed.DatedPost
	for d, p := range m.posts {
		out = append(out, feed.DatedPost{Date: d, Post: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetAutoPostState(context.Context) (*database.AutoPostState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.state
	return &state, nil
}

func (m *memStore) SetLastPublished(_ context.Context, date feed.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastPublished = &date
	m.markCalls++
	return nil
}

func (m *memStore) SetPublishHour(_ context.Context, hour int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.PublishHour = hour
	return nil
}

func (m *memStore) SetDestination(_ context.Context, guildID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destinations[guildID] = channelID
	return nil
}

func (m *memStore) ClearDestination(_ context.Context, guildID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.destinations, guildID)
	return nil
}

func (m *memStore) ListDestinations(context.Context) ([]database.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Destination
	for g, c := range m.destinations {
		out = append(out, database.Destination{GuildID: g, ChannelID: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out, nil
}

// fakeSource serves a scripted sequence of feed snapshots; the last one
// repeats once the script runs out.
type fakeSource struct {
	mu        sync.Mutex
	snapshots [][]feed.Entry
	err       error
	calls     int
	onFetch   func()
}

func (f *fakeSource) Fetch(_ context.Context, url string) ([]feed.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return nil, &feed.FetchError{URL: url, Err: f.err}
	}
	if len(f.snapshots) == 0 {
		return nil, nil
	}
	i := min(f.calls-1, len(f.snapshots)-1)
	return f.snapshots[i], nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// blockingSource holds every fetch until release is closed.
type blockingSource struct {
	entries []feed.Entry
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	calls   int
	ctxErrs []error
}

func newBlockingSource(entries ...feed.Entry) *blockingSource {
	return &blockingSource{
		entries: entries,
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (b *blockingSource) Fetch(ctx context.Context, url string) ([]feed.Entry, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.started <- struct{}{}

	select {
	case <-b.release:
	case <-ctx.Done():
	}

	b.mu.Lock()
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &feed.FetchError{URL: url, Err: err}
	}
	return b.entries, nil
}

func (b *blockingSource) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *blockingSource) ContextErrors() []error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]error(nil), b.ctxErrs...)
}

type sent struct {
	channelID string
	msg       Message
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sent
	fail   map[string]bool
	before func(channelID string)
}

func (s *fakeSender) Send(_ context.Context, channelID string, msg Message) error {
	if s.before != nil {
		s.before(channelID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[channelID] {
		return errors.New("channel unavailable")
	}
	s.sent = append(s.sent, sent{channelID: channelID, msg: msg})
	return nil
}

func (s *fakeSender) Sent() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func entry(title string, year int, month time.Month, day int) feed.Entry {
	published := time.Date(year, month, day, 6, 0, 0, 0, time.UTC)
	return feed.Entry{
		Title:     title,
		Link:      "https://example.com/" + title,
		Summary:   "<p>" + title + "</p>",
		Published: &published,
	}
}
