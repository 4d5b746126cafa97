package api

import (
	"context"

	"github.com/lysyi3m/postcard/app/feed"
	"github.com/lysyi3m/postcard/app/postcard"
)

// Service is implemented by *postcard.Service.
type Service interface {
	Version() postcard.Message
	Today(ctx context.Context) (postcard.Daily, error)
	Post(ctx context.Context, date feed.Date) (*feed.Post, error)
	Archive(ctx context.Context, limit int) ([]feed.DatedPost, error)
	Refresh(ctx context.Context) (int, error)
	SetDestination(ctx context.Context, guildID, channelID, channelName string) (postcard.Message, error)
	UnsetDestination(ctx context.Context, guildID string) (postcard.Message, error)
	SetPublishHour(ctx context.Context, hour int) (postcard.Message, error)
	Status(ctx context.Context) (*postcard.Status, error)
}

// Pinger reports storage health. Implemented by *database.DB and
// *cache.Cache.
type Pinger interface {
	Health(ctx context.Context) error
}

// Trigger runs an auto-post cycle on demand. Implemented by
// *tasks.Scheduler.
type Trigger interface {
	TriggerNow() (postcard.Result, error)
}

type Handler struct {
	service   Service
	storage   Pinger
	scheduler Trigger
	generator *feed.Generator
}

type PostcardResponse struct {
	Date string `json:"date"`
	postcard.Message
}

type SetChannelRequest struct {
	ChannelID   string `json:"channel_id" binding:"required"`
	ChannelName string `json:"channel_name"`
}

type SetPublishHourRequest struct {
	Hour *int `json:"hour" binding:"required"`
}
