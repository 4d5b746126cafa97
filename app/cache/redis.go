package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/postcard/app/database"
	"github.com/lysyi3m/postcard/app/feed"
)

const (
	postsKey        = "postcard:posts"
	autopostKey     = "postcard:autopost"
	destinationsKey = "postcard:destinations"

	fieldLastPublished = "last_published_date"
	fieldPublishHour   = "publish_hour"
	fieldUpdatedAt     = "updated_at"
)

var (
	_ database.PostRepository        = (*Cache)(nil)
	_ database.StateRepository       = (*Cache)(nil)
	_ database.DestinationRepository = (*Cache)(nil)
)

// Cache keeps all postcard state in Redis hashes.
type Cache struct {
	client *redis.Client
}

type destinationRecord struct {
	ChannelID string `json:"channel_id"`
	UpdatedAt int64  `json:"updated_at"`
}

// NewCache creates a new Redis cache client
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr, "db", db)

	return &Cache{client: client}, nil
}

func (c *Cache) GetPost(ctx context.Context, date feed.Date) (*feed.Post, error) {
	data, err := c.client.HGet(ctx, postsKey, date.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post for %s: %w", date, err)
	}

	var post feed.Post
	if err := json.Unmarshal([]byte(data), &post); err != nil {
		return nil, fmt.Errorf("failed to decode post for %s: %w", date, err)
	}

	return &post, nil
}

// ReplacePosts deletes and rewrites the posts hash inside MULTI/EXEC.
func (c *Cache) ReplacePosts(ctx context.Context, posts map[feed.Date]feed.Post) error {
	values := make(map[string]interface{}, len(posts))
	for date, post := range posts {
		data, err := json.Marshal(post)
		if err != nil {
			return fmt.Errorf("failed to encode post for %s: %w", date, err)
		}
		values[date.String()] = data
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, postsKey)
		if len(values) > 0 {
			pipe.HSet(ctx, postsKey, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace posts: %w", err)
	}

	return nil
}

func (c *Cache) CountPosts(ctx context.Context) (int, error) {
	n, err := c.client.HLen(ctx, postsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get post count: %w", err)
	}
	return int(n), nil
}

func (c *Cache) ListPosts(ctx context.Context, limit int) ([]feed.DatedPost, error) {
	fields, err := c.client.HGetAll(ctx, postsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	posts := make([]feed.DatedPost, 0, len(fields))
	for key, data := range fields {
		date, err := feed.ParseDate(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse post date: %w", err)
		}
		var p feed.Post
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("failed to decode post for %s: %w", key, err)
		}
		posts = append(posts, feed.DatedPost{Date: date, Post: p})
	}

	slices.SortFunc(posts, func(a, b feed.DatedPost) int {
		return b.Date.Time().Compare(a.Date.Time())
	})

	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}

	return posts, nil
}

func (c *Cache) GetAutoPostState(ctx context.Context) (*database.AutoPostState, error) {
	fields, err := c.client.HGetAll(ctx, autopostKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get autopost state: %w", err)
	}

	state := &database.AutoPostState{PublishHour: database.DefaultPublishHour}

	if v, ok := fields[fieldPublishHour]; ok {
		hour, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse publish hour %q: %w", v, err)
		}
		state.PublishHour = hour
	}

	if v := fields[fieldLastPublished]; v != "" {
		date, err := feed.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last published date: %w", err)
		}
		state.LastPublished = &date
	}

	if v, ok := fields[fieldUpdatedAt]; ok {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.UpdatedAt = time.Unix(ts, 0).UTC()
		}
	}

	return state, nil
}

func (c *Cache) SetLastPublished(ctx context.Context, date feed.Date) error {
	err := c.client.HSet(ctx, autopostKey,
		fieldLastPublished, date.String(),
		fieldUpdatedAt, time.Now().UTC().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set last published date: %w", err)
	}
	return nil
}

func (c *Cache) SetPublishHour(ctx context.Context, hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("failed to set publish hour: %d out of range [0,23]", hour)
	}

	err := c.client.HSet(ctx, autopostKey,
		fieldPublishHour, hour,
		fieldUpdatedAt, time.Now().UTC().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set publish hour: %w", err)
	}
	return nil
}

func (c *Cache) SetDestination(ctx context.Context, guildID, channelID string) error {
	data, err := json.Marshal(destinationRecord{ChannelID: channelID, UpdatedAt: time.Now().UTC().Unix()})
	if err != nil {
		return fmt.Errorf("failed to encode destination: %w", err)
	}

	if err := c.client.HSet(ctx, destinationsKey, guildID, data).Err(); err != nil {
		return fmt.Errorf("failed to set destination: %w", err)
	}
	return nil
}

func (c *Cache) ClearDestination(ctx context.Context, guildID string) error {
	if err := c.client.HDel(ctx, destinationsKey, guildID).Err(); err != nil {
		return fmt.Errorf("failed to clear destination: %w", err)
	}
	return nil
}

func (c *Cache) ListDestinations(ctx context.Context) ([]database.Destination, error) {
	fields, err := c.client.HGetAll(ctx, destinationsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}

	destinations := make([]database.Destination, 0, len(fields))
	for guildID, data := range fields {
		dest, err := decodeDestination(guildID, data)
		if err != nil {
			return nil, err
		}
		destinations = append(destinations, dest)
	}

	slices.SortFunc(destinations, func(a, b database.Destination) int {
		return strings.Compare(a.GuildID, b.GuildID)
	})

	return destinations, nil
}

// Health pings Redis.
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

func decodeDestination(guildID, data string) (database.Destination, error) {
	var rec destinationRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return database.Destination{}, fmt.Errorf("failed to decode destination for guild %s: %w", guildID, err)
	}

	return database.Destination{
		GuildID:   guildID,
		ChannelID: rec.ChannelID,
		UpdatedAt: time.Unix(rec.UpdatedAt, 0).UTC(),
	}, nil
}
