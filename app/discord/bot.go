// Package discord connects the postcard commands and auto-post broadcasts to
// a Discord bot session.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/lysyi3m/postcard/app/postcard"
)

var _ postcard.Sender = (*Bot)(nil)

// Service is the set of commands the bot exposes. Implemented by
// *postcard.Service.
type Service interface {
	Version() postcard.Message
	Today(ctx context.Context) (postcard.Daily, error)
	SetDestination(ctx context.Context, guildID, channelID, channelName string) (postcard.Message, error)
	UnsetDestination(ctx context.Context, guildID string) (postcard.Message, error)
	SetPublishHour(ctx context.Context, hour int) (postcard.Message, error)
}

type Bot struct {
	session *discordgo.Session
	router  *router

	ready     chan struct{}
	readyOnce sync.Once

	mu      sync.RWMutex
	ownerID string
}

func NewBot(token, prefix, ownerID string, service Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		session: session,
		ready:   make(chan struct{}),
		ownerID: ownerID,
	}
	b.router = newRouter(prefix, service, b)

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)

	return b, nil
}

func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

// Ready is closed once the first Ready event has been handled.
func (b *Bot) Ready() <-chan struct{} {
	return b.ready
}

func (b *Bot) Send(ctx context.Context, channelID string, msg postcard.Message) error {
	if _, err := b.session.ChannelMessageSendEmbed(channelID, toEmbed(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send message to channel %s: %w", channelID, err)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	slog.Info("Discord session ready", "user", r.User.Username, "guilds", len(r.Guilds))

	b.mu.RLock()
	ownerKnown := b.ownerID != ""
	b.mu.RUnlock()

	if !ownerKnown {
		app, err := s.Application("@me")
		if err != nil {
			slog.Warn("Failed to look up application owner, owner commands disabled", "error", err)
		} else if app.Owner != nil {
			b.mu.Lock()
			b.ownerID = app.Owner.ID
			b.mu.Unlock()
			slog.Debug("Application owner resolved", "owner", app.Owner.ID)
		}
	}

	b.readyOnce.Do(func() { close(b.ready) })
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	req, ok := b.router.parse(m.Message)
	if !ok {
		return
	}

	reply := b.router.dispatch(context.Background(), req)
	if reply == nil {
		return
	}

	var err error
	if reply.Text != "" {
		_, err = s.ChannelMessageSend(m.ChannelID, reply.Text)
	} else {
		_, err = s.ChannelMessageSendEmbed(m.ChannelID, toEmbed(reply.Message))
	}
	if err != nil {
		slog.Error("Failed to reply to command", "command", req.Command, "channel", m.ChannelID, "error", err)
	}
}

func (b *Bot) isOwner(userID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ownerID != "" && b.ownerID == userID
}

func (b *Bot) canManageGuild(userID, channelID string) (bool, error) {
	perms, err := b.session.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false, err
	}
	return perms&(discordgo.PermissionAdministrator|discordgo.PermissionManageServer) != 0, nil
}

func (b *Bot) channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := b.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return b.session.Channel(channelID)
}

func (b *Bot) channelGuild(channelID string) (string, error) {
	ch, err := b.channel(channelID)
	if err != nil {
		return "", err
	}
	return ch.GuildID, nil
}

func (b *Bot) channelName(channelID string) string {
	if ch, err := b.channel(channelID); err == nil {
		return ch.Name
	}
	return "<#" + channelID + ">"
}

func toEmbed(msg postcard.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		URL:         msg.URL,
	}
	if msg.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: msg.ImageURL}
	}
	return embed
}
