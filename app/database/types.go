package database

import (
	"time"

	"github.com/lysyi3m/postcard/app/feed"
)

const DefaultPublishHour = 12

type AutoPostState struct {
	LastPublished *feed.Date
	PublishHour   int // UTC hour in [0,23]
	UpdatedAt     time.Time
}

type Destination struct {
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
