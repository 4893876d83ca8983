package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorSubscriber attaches to the live proctoring channel. The returned
// func detaches the subscription.
type MonitorSubscriber interface {
	Subscribe(ctx context.Context) (<-chan *redis.Message, func() error)
}

// MonitorHandler streams the live proctoring feed to the dashboard.
type MonitorHandler struct {
	live           MonitorSubscriber
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(live MonitorSubscriber, monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		live:           live,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSSE godoc
// GET /api/v1/admin/quiz/monitor?topic=
// Sends an overview snapshot, then forwards violations and outcomes as they
// happen, with a periodic overview refresh while events keep coming. With a
// topic, both the overview frames and the forwarded events are limited to it.
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	reqCtx := c.Request.Context()
	topic := c.Query("topic")

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendOverview(c, reqCtx, topic, "snapshot")

	ch, unsubscribe := h.live.Subscribe(reqCtx)
	defer unsubscribe()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refresh queries while nothing is happening.
	dirty := false

	h.log.Info().Str("topic", topic).Msg("Admin attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !matchesTopic(msg.Payload, topic) {
				continue
			}
			// Events are forwarded as published, without re-encoding.
			writeSSE(c, []byte(msg.Payload))
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			dirty = false
			h.sendOverview(c, reqCtx, topic, "refresh")

		case <-keepAliveTicker.C:
			writeSSE(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) sendOverview(c *gin.Context, parent context.Context, topic, kind string) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	ov, err := h.monitorService.GetOverview(ctx, topic)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to fetch proctoring overview")
		return
	}

	data, err := json.Marshal(map[string]interface{}{
		"type": kind,
		"data": ov,
	})
	if err != nil {
		return
	}
	writeSSE(c, data)
}

// matchesTopic reports whether a monitor event belongs to topic. An empty
// topic matches everything.
func matchesTopic(payload, topic string) bool {
	if topic == "" {
		return true
	}
	var ev struct {
		Data struct {
			Topic string `json:"topic"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return false
	}
	return ev.Data.Topic == topic
}

// writeSSE emits one data-only server-sent event and flushes it.
func writeSSE(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
