package postcard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/postcard/app/database"
	"github.com/lysyi3m/postcard/app/feed"
)

var ErrInvalidHour = errors.New("publish hour must be in [0,23]")

const NotYetPosted = "Not yet posted today"

// Service implements the user-facing commands.
type Service struct {
	resolver     *Resolver
	state        database.StateRepository
	destinations database.DestinationRepository
	version      string
}

type Status struct {
	Today         string                 `json:"today"`
	LastPublished string                 `json:"last_published,omitempty"`
	PublishHour   int                    `json:"publish_hour"`
	CachedPosts   int                    `json:"cached_posts"`
	Destinations  []database.Destination `json:"destinations"`
}

func NewService(resolver *Resolver, state database.StateRepository, destinations database.DestinationRepository, version string) *Service {
	return &Service{
		resolver:     resolver,
		state:        state,
		destinations: destinations,
		version:      version,
	}
}

func (s *Service) Version() Message {
	return Message{
		Title:       "Postcard Version Number",
		Description: s.version,
	}
}

// Daily is today's post rendered for display. Found is false when the feed
// has not published it yet; Message then carries the informational reply.
type Daily struct {
	Date    feed.Date
	Message Message
	Found   bool
}

// Today renders the post for the date it was resolved against.
func (s *Service) Today(ctx context.Context) (Daily, error) {
	date, post, err := s.resolver.Today(ctx)
	if err != nil {
		return Daily{}, err
	}
	if post == nil {
		return Daily{Date: date, Message: Message{Title: NotYetPosted}}, nil
	}
	return Daily{Date: date, Message: Render(*post), Found: true}, nil
}

// Post returns the cached post for date without touching the feed.
func (s *Service) Post(ctx context.Context, date feed.Date) (*feed.Post, error) {
	return s.resolver.Lookup(ctx, date)
}

// Refresh forces a feed refresh.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	return s.resolver.Refresh(ctx)
}

// Archive lists cached posts, newest first.
func (s *Service) Archive(ctx context.Context, limit int) ([]feed.DatedPost, error) {
	return s.resolver.posts.ListPosts(ctx, limit)
}

func (s *Service) SetDestination(ctx context.Context, guildID, channelID, channelName string) (Message, error) {
	if err := s.destinations.SetDestination(ctx, guildID, channelID); err != nil {
		return Message{}, err
	}

	slog.Info("Auto post channel set", "guild", guildID, "channel", channelID)

	return Message{
		Title:       "Set Auto Postcard Channel: Success",
		Description: fmt.Sprintf("Auto Postcard channel set to %s", channelName),
	}, nil
}

func (s *Service) UnsetDestination(ctx context.Context, guildID string) (Message, error) {
	if err := s.destinations.ClearDestination(ctx, guildID); err != nil {
		return Message{}, err
	}

	slog.Info("Auto post channel cleared", "guild", guildID)

	return Message{
		Title: "Set Auto Postcard Channel: Success",
		Description: "Auto Postcard channel set to None.\n" +
			"This server will not receive postcards automatically",
	}, nil
}

// SetPublishHour validates hour before storing it. An out-of-range hour
// returns ErrInvalidHour together with the failure message to show.
func (s *Service) SetPublishHour(ctx context.Context, hour int) (Message, error) {
	if hour < 0 || hour > 23 {
		return Message{
			Title:       "Set GMT Hour Start: Failure",
			Description: "Must be value [0,23]",
		}, ErrInvalidHour
	}

	if err := s.state.SetPublishHour(ctx, hour); err != nil {
		return Message{}, err
	}

	slog.Info("GMT hour start set", "hour", hour)

	return Message{
		Title:       "Set GMT Hour Start: Success",
		Description: fmt.Sprintf("GMT Hour Start set to %d", hour),
	}, nil
}

func (s *Service) Status(ctx context.Context) (*Status, error) {
	state, err := s.state.GetAutoPostState(ctx)
	if err != nil {
		return nil, err
	}

	destinations, err := s.destinations.ListDestinations(ctx)
	if err != nil {
		return nil, err
	}

	count, err := s.resolver.posts.CountPosts(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Today:        s.resolver.Date().String(),
		PublishHour:  state.PublishHour,
		CachedPosts:  count,
		Destinations: destinations,
	}
	if status.Destinations == nil {
		status.Destinations = []database.Destination{}
	}
	if state.LastPublished != nil {
		status.LastPublished = state.LastPublished.String()
	}

	return status, nil
}
