package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/lysyi3m/postcard/app/feed"
	"github.com/lysyi3m/postcard/app/postcard"
)

const (
	cmdVersion      = "postcard_version"
	cmdPostcard     = "postcard"
	cmdSetChannel   = "set_postcard_autopost_channel"
	cmdUnsetChannel = "unset_postcard_autopost_channel"
	cmdSetHour      = "set_gmt_hour_start"
)

const (
	textGuildOnly   = "This command can only be used in a server"
	textOwnerOnly   = "Only the bot owner can use this command"
	textFeedFailure = "Could not reach the postcard feed, try again later"
	textInternal    = "Something went wrong, try again later"
)

type request struct {
	Command   string
	Args      []string
	GuildID   string
	ChannelID string
	AuthorID  string
}

// reply is either plain text or an embed.
type reply struct {
	Text    string
	Message postcard.Message
}

type permissions interface {
	isOwner(userID string) bool
	canManageGuild(userID, channelID string) (bool, error)
	channelName(channelID string) string
	channelGuild(channelID string) (string, error)
}

type router struct {
	prefix  string
	service Service
	perms   permissions
}

func newRouter(prefix string, service Service, perms permissions) *router {
	return &router{prefix: prefix, service: service, perms: perms}
}

func (r *router) parse(m *discordgo.Message) (request, bool) {
	name, args, ok := parseCommand(r.prefix, m.Content)
	if !ok {
		return request{}, false
	}
	author := ""
	if m.Author != nil {
		author = m.Author.ID
	}
	return request{
		Command:   name,
		Args:      args,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  author,
	}, true
}

// dispatch runs a command and returns the reply to send, or nil for
// messages that are not commands of this bot.
func (r *router) dispatch(ctx context.Context, req request) *reply {
	switch req.Command {
	case cmdVersion:
		return &reply{Message: r.service.Version()}
	case cmdPostcard:
		return r.today(ctx)
	case cmdSetChannel:
		return r.setChannel(ctx, req)
	case cmdUnsetChannel:
		return r.unsetChannel(ctx, req)
	case cmdSetHour:
		return r.setHour(ctx, req)
	default:
		return nil
	}
}

func (r *router) today(ctx context.Context) *reply {
	daily, err := r.service.Today(ctx)
	if err != nil {
		var fetchErr *feed.FetchError
		if errors.As(err, &fetchErr) {
			slog.Warn("Feed unavailable for postcard command", "error", err)
			return &reply{Text: textFeedFailure}
		}
		slog.Error("Failed to resolve today's postcard", "error", err)
		return &reply{Text: textInternal}
	}
	if !daily.Found {
		return &reply{Text: daily.Message.Title}
	}
	return &reply{Message: daily.Message}
}

func (r *router) setChannel(ctx context.Context, req request) *reply {
	if denied := r.requireAdmin(req, "Set Auto Postcard Channel: Failure"); denied != nil {
		return denied
	}

	if len(req.Args) != 1 {
		return usage("Set Auto Postcard Channel: Failure", r.prefix+cmdSetChannel+" #channel")
	}
	channelID, ok := parseChannelMention(req.Args[0])
	if !ok {
		return usage("Set Auto Postcard Channel: Failure", r.prefix+cmdSetChannel+" #channel")
	}

	guildID, err := r.perms.channelGuild(channelID)
	if err != nil || guildID != req.GuildID {
		slog.Warn("Rejected auto post channel outside guild", "guild", req.GuildID, "channel", channelID, "channel_guild", guildID, "error", err)
		return &reply{Message: postcard.Message{
			Title:       "Set Auto Postcard Channel: Failure",
			Description: "Channel not found in this server",
		}}
	}

	msg, err := r.service.SetDestination(ctx, req.GuildID, channelID, r.perms.channelName(channelID))
	if err != nil {
		slog.Error("Failed to set auto post channel", "guild", req.GuildID, "channel", channelID, "error", err)
		return &reply{Text: textInternal}
	}
	return &reply{Message: msg}
}

func (r *router) unsetChannel(ctx context.Context, req request) *reply {
	if denied := r.requireAdmin(req, "Set Auto Postcard Channel: Failure"); denied != nil {
		return denied
	}

	msg, err := r.service.UnsetDestination(ctx, req.GuildID)
	if err != nil {
		slog.Error("Failed to unset auto post channel", "guild", req.GuildID, "error", err)
		return &reply{Text: textInternal}
	}
	return &reply{Message: msg}
}

func (r *router) setHour(ctx context.Context, req request) *reply {
	if !r.perms.isOwner(req.AuthorID) {
		return &reply{Text: textOwnerOnly}
	}

	if len(req.Args) != 1 {
		return usage("Set GMT Hour Start: Failure", r.prefix+cmdSetHour+" <hour>")
	}
	hour, err := strconv.Atoi(req.Args[0])
	if err != nil {
		return usage("Set GMT Hour Start: Failure", r.prefix+cmdSetHour+" <hour>")
	}

	msg, err := r.service.SetPublishHour(ctx, hour)
	if err != nil && !errors.Is(err, postcard.ErrInvalidHour) {
		slog.Error("Failed to set GMT hour start", "hour", hour, "error", err)
		return &reply{Text: textInternal}
	}
	return &reply{Message: msg}
}

func (r *router) requireAdmin(req request, failureTitle string) *reply {
	if req.GuildID == "" {
		return &reply{Text: textGuildOnly}
	}

	allowed, err := r.perms.canManageGuild(req.AuthorID, req.ChannelID)
	if err != nil {
		slog.Warn("Failed to check member permissions", "guild", req.GuildID, "user", req.AuthorID, "error", err)
	}
	if !allowed {
		return &reply{Message: postcard.Message{
			Title:       failureTitle,
			Description: "You need the Administrator or Manage Server permission",
		}}
	}
	return nil
}

func usage(title, syntax string) *reply {
	return &reply{Message: postcard.Message{
		Title:       title,
		Description: fmt.Sprintf("Usage: %s", syntax),
	}}
}

// parseCommand splits "!name arg1 arg2" into its name and arguments.
func parseCommand(prefix, content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}

	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}

	return fields[0], fields[1:], true
}

// parseChannelMention accepts a channel mention (<#123>) or a bare
// channel ID.
func parseChannelMention(arg string) (string, bool) {
	id := arg
	if strings.HasPrefix(arg, "<#") && strings.HasSuffix(arg, ">") {
		id = arg[2 : len(arg)-1]
	}
	if id == "" {
		return "", false
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", false
	}
	return id, true
}
