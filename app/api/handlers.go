package api

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/postcard/app/feed"
	"github.com/lysyi3m/postcard/app/postcard"
	"github.com/lysyi3m/postcard/app/tasks"
)

const defaultArchiveLimit = 30

func NewHandler(service Service, storage Pinger, scheduler Trigger, generator *feed.Generator) *Handler {
	return &Handler{
		service:   service,
		storage:   storage,
		scheduler: scheduler,
		generator: generator,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"status":    "ok",
	}

	if err := h.storage.Health(c.Request.Context()); err != nil {
		slog.Error("Storage health check failed", "error", err)
		health["status"] = "unavailable"
		health["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	if status, err := h.service.Status(c.Request.Context()); err == nil {
		health["cached_posts"] = status.CachedPosts
		health["destinations"] = len(status.Destinations)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": h.service.Version().Description})
}

func (h *Handler) GetToday(c *gin.Context) {
	daily, err := h.service.Today(c.Request.Context())
	if err != nil {
		var fetchErr *feed.FetchError
		if errors.As(err, &fetchErr) {
			slog.Warn("Feed unavailable", "url", fetchErr.URL, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Feed unavailable"})
			return
		}
		slog.Error("Failed to resolve today's postcard", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve today's postcard"})
		return
	}

	if !daily.Found {
		c.JSON(http.StatusNotFound, gin.H{"message": daily.Message.Title})
		return
	}

	c.JSON(http.StatusOK, PostcardResponse{
		Date:    daily.Date.String(),
		Message: daily.Message,
	})
}

func (h *Handler) GetPostcard(c *gin.Context) {
	date, err := parseDateParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := h.service.Post(c.Request.Context(), date)
	if err != nil {
		slog.Error("Database error", "operation", "get_post", "date", date.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Postcard not cached"})
		return
	}

	c.JSON(http.StatusOK, PostcardResponse{
		Date:    date.String(),
		Message: postcard.Render(*post),
	})
}

func (h *Handler) GetArchive(c *gin.Context) {
	limit := defaultArchiveLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	posts, err := h.service.Archive(c.Request.Context(), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_posts", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	selfLink := fmt.Sprintf("%s://%s%s", scheme, c.Request.Host, c.Request.URL.Path)

	rss, err := h.generator.Run(posts, selfLink)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(posts)))

	c.String(http.StatusOK, rss)
}

func (h *Handler) APIGetState(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_state", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) APISetChannel(c *gin.Context) {
	guildID := c.Param("guild")

	var req SetChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	msg, err := h.service.SetDestination(c.Request.Context(), guildID, req.ChannelID, cmp.Or(req.ChannelName, req.ChannelID))
	if err != nil {
		slog.Error("Database error", "operation", "set_destination", "guild", guildID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *Handler) APIUnsetChannel(c *gin.Context) {
	guildID := c.Param("guild")

	msg, err := h.service.UnsetDestination(c.Request.Context(), guildID)
	if err != nil {
		slog.Error("Database error", "operation", "clear_destination", "guild", guildID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *Handler) APISetPublishHour(c *gin.Context) {
	var req SetPublishHourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
		return
	}

	msg, err := h.service.SetPublishHour(c.Request.Context(), *req.Hour)
	if errors.Is(err, postcard.ErrInvalidHour) {
		c.JSON(http.StatusBadRequest, msg)
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "set_publish_hour", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *Handler) APIRefresh(c *gin.Context) {
	count, err := h.service.Refresh(c.Request.Context())
	if err != nil {
		var fetchErr *feed.FetchError
		if errors.As(err, &fetchErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Feed unavailable", "message": err.Error()})
			return
		}
		slog.Error("Feed refresh failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Feed refresh failed", "message": err.Error()})
		return
	}

	slog.Info("Feed refreshed via API", "posts", count)

	c.JSON(http.StatusOK, gin.H{"posts": count})
}

func (h *Handler) APIRunAutoPost(c *gin.Context) {
	result, err := h.scheduler.TriggerNow()
	if errors.Is(err, tasks.ErrBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "Auto post already running"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Auto post failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":    result.Date.String(),
		"outcome": result.Outcome,
		"sent":    result.Sent,
		"failed":  result.Failed,
	})
}

func parseDateParams(c *gin.Context) (feed.Date, error) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return feed.Date{}, errors.New("invalid year")
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		return feed.Date{}, errors.New("invalid month")
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		return feed.Date{}, errors.New("invalid day")
	}
	return feed.NewDate(year, time.Month(month), day)
}
