package postcard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lysyi3m/postcard/app/database"
	"github.com/lysyi3m/postcard/app/feed"
)

type Outcome string

const (
	OutcomeTooEarly         Outcome = "too_early"
	OutcomeAlreadyPublished Outcome = "already_published"
	OutcomeNotAvailable     Outcome = "not_available"
	OutcomePublished        Outcome = "published"
)

type Result struct {
	Outcome Outcome   `json:"outcome"`
	Date    feed.Date `json:"-"`
	Sent    int       `json:"sent"`
	Failed  int       `json:"failed"`
}

// AutoPoster publishes today's post to every registered destination at most
// once per UTC day, and only from the configured hour onward.
type AutoPoster struct {
	resolver     *Resolver
	state        database.StateRepository
	destinations database.DestinationRepository
	sender       Sender
	mu           sync.Mutex
}

func NewAutoPoster(resolver *Resolver, state database.StateRepository, destinations database.DestinationRepository, sender Sender) *AutoPoster {
	return &AutoPoster{
		resolver:     resolver,
		state:        state,
		destinations: destinations,
		sender:       sender,
	}
}

// Run performs one auto-post cycle. The day is marked published before any
// message goes out, so a failure mid-broadcast is never retried.
func (p *AutoPoster) Run(ctx context.Context) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.resolver.now().UTC()
	today := feed.DateOf(now)
	result := Result{Date: today}

	state, err := p.state.GetAutoPostState(ctx)
	if err != nil {
		return result, err
	}

	if now.Hour() < state.PublishHour {
		result.Outcome = OutcomeTooEarly
		return result, nil
	}

	if state.LastPublished != nil && state.LastPublished.Equal(today) {
		result.Outcome = OutcomeAlreadyPublished
		return result, nil
	}

	post, err := p.resolver.ForDate(ctx, today)
	if err != nil {
		return result, err
	}
	if post == nil {
		result.Outcome = OutcomeNotAvailable
		return result, nil
	}

	slog.Info("Auto posting", "date", today.String(), "title", post.Title)

	if err := p.state.SetLastPublished(ctx, today); err != nil {
		return result, fmt.Errorf("failed to mark %s as published: %w", today, err)
	}
	result.Outcome = OutcomePublished

	destinations, err := p.destinations.ListDestinations(ctx)
	if err != nil {
		return result, err
	}

	msg := Render(*post)
	for _, dest := range destinations {
		if err := p.sender.Send(ctx, dest.ChannelID, msg); err != nil {
			slog.Error("Failed to auto post", "date", today.String(), "guild", dest.GuildID, "channel", dest.ChannelID, "error", err)
			result.Failed++
			continue
		}
		slog.Info("Auto posted", "date", today.String(), "guild", dest.GuildID, "channel", dest.ChannelID)
		result.Sent++
	}

	return result, nil
}
