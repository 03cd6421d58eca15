package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/classquiz/classquiz-backend/internal/middleware"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // keeps a slow query from stalling the SSE loop
)

// MonitorHandler streams live attempt activity of a quiz to its teacher.
type MonitorHandler struct {
	monitorService *service.MonitorService
	log            zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorQuizSSE godoc
// GET /api/v1/quizzes/:id/monitor
// Sends a snapshot, then forwards attempt events as they happen.
func (h *MonitorHandler) MonitorQuizSSE(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()
	snapshot, err := h.monitorService.Snapshot(reqCtx, middleware.GetClaims(c).UserID, quizID)
	if err != nil {
		failWith(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("snapshot", snapshot)
	c.Writer.Flush()

	pubsub := h.monitorService.Subscribe(reqCtx, quizID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Refreshes only run after something happened since the last one.
	dirty := false

	h.log.Info().Str("quiz_id", quizID.String()).Msg("Teacher attached to live monitor")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("quiz_id", quizID.String()).Msg("Teacher detached from live monitor")
			return

		case msg, open := <-ch:
			if !open {
				return
			}
			// Payload is already JSON
			c.Writer.Write([]byte("event: attempt\ndata: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			dirty = false
			h.sendRefresh(c, reqCtx, quizID)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte(": ping\n\n"))
			c.Writer.Flush()
		}
	}
}

// sendRefresh recounts attempt states and sends them as a stats event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, quizID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	stats, err := h.monitorService.Stats(ctx, quizID)
	if err != nil {
		h.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Failed to refresh monitor stats")
		return
	}

	c.SSEvent("stats", stats)
	c.Writer.Flush()
}
