package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grudge-angeler/backend/internal/events"
)

const eventStatus = "status"

// handleTournamentEvents streams scheduler phase changes as server-sent events.
// The current status is sent first so a client never waits for the next edge.
func (h *httpHandler) handleTournamentEvents(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.events.Subscribe(ctx)
	defer cleanup()

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	status := h.calendar.Status()
	c.SSEvent(eventStatus, tournamentStatusResponse{
		Active:   status.Active,
		Date:     status.Date,
		Phase:    status.Phase,
		StartsIn: status.SecondsUntilStart,
		EndsIn:   status.SecondsUntilEnd,
	})
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent(message.Type, message)
		case <-heartbeat.C:
			c.SSEvent(events.TypeHeartbeat, events.Message{
				Type:      events.TypeHeartbeat,
				Date:      h.calendar.CurrentDate(),
				Source:    events.SourceBackend,
				Timestamp: h.calendar.Now().UTC(),
			})
		}
		c.Writer.Flush()
	}
}
