package feed

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"feedsync/internal/app/session"
)

// Handler exposes the renderer's trigger boundary and feed introspection
// over HTTP for the headless daemon: NearTop and ReachedBottom arrive as
// POSTs instead of scroll events.
type Handler interface {
	Stats(c *gin.Context)
	LoadOlder(c *gin.Context)
	MarkRead(c *gin.Context)
	GetMessage(c *gin.Context)
}

type StatsResponse struct {
	Size          int       `json:"size"`
	OldestKey     string    `json:"oldest_key,omitempty"`
	MoreAvailable bool      `json:"more_available"`
	PageInFlight  bool      `json:"page_in_flight"`
	UnreadCount   int       `json:"unread_count"`
	UnreadKeys    []string  `json:"unread_keys,omitempty"`
	Baseline      time.Time `json:"baseline"`
	Watermark     time.Time `json:"watermark"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	store     *Store
	paginator *Paginator
	tracker   ReadTracker
	log       Log
	sess      *session.Context
	logger    *zap.SugaredLogger
}

func NewHandler(
	store *Store,
	paginator *Paginator,
	tracker ReadTracker,
	log Log,
	sess *session.Context,
	logger *zap.Logger,
) Handler {
	return &handler{
		store:     store,
		paginator: paginator,
		tracker:   tracker,
		log:       log,
		sess:      sess,
		logger:    logger.Sugar(),
	}
}

func (h *handler) Stats(c *gin.Context) {
	oldest, _ := h.store.OldestKey()
	unreadKeys := h.tracker.UnreadKeys()

	c.JSON(http.StatusOK, StatsResponse{
		Size:          h.store.Size(),
		OldestKey:     oldest,
		MoreAvailable: h.store.MoreAvailable(),
		PageInFlight:  h.paginator.InFlight(),
		UnreadCount:   len(unreadKeys),
		UnreadKeys:    unreadKeys,
		Baseline:      h.sess.Baseline(),
		Watermark:     h.sess.Watermark(),
	})
}

// LoadOlder is the NearTop trigger.
func (h *handler) LoadOlder(c *gin.Context) {
	count, err := h.paginator.LoadOlder(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"loaded":         count,
		"more_available": h.store.MoreAvailable(),
	})
}

// MarkRead is the ReachedBottom trigger.
func (h *handler) MarkRead(c *gin.Context) {
	unread := h.tracker.AdvanceWatermark(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"watermark": h.sess.Watermark(),
		"unread":    unread,
	})
}

// GetMessage serves from the local mirror and falls back to the remote log
// for keys that were trimmed or never materialized.
func (h *handler) GetMessage(c *gin.Context) {
	key := c.Param("key")

	if msg, ok := h.store.Get(key); ok {
		c.JSON(http.StatusOK, gin.H{"message": msg, "source": "local"})
		return
	}

	msg, err := h.log.Get(c.Request.Context(), key)
	if err != nil {
		h.logger.Warnw("Remote message lookup failed", "key", key, "error", err)
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "source": "remote"})
}
