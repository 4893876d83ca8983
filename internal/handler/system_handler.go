package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	metricsInterval = 5 * time.Second
	probeTimeout    = 2 * time.Second
)

// QueueDepther reports the backlog of the persistence queues.
type QueueDepther interface {
	QueueDepths(ctx context.Context) (map[string]int64, error)
}

// Pinger is a dependency health probe (PostgreSQL pool, Redis client).
type Pinger func(ctx context.Context) error

// SystemHandler serves health checks and streams runtime metrics via SSE.
type SystemHandler struct {
	queues    QueueDepther
	streams   func() int64
	probes    map[string]Pinger
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. streams reports the number
// of connected quiz sessions.
func NewSystemHandler(queues QueueDepther, streams func() int64, probes map[string]Pinger, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		queues:    queues,
		streams:   streams,
		probes:    probes,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	// Proctoring
	ActiveSessions int64            `json:"active_sessions"`
	Queues         map[string]int64 `json:"queues"`
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.probes))
	healthy := true
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			checks[name] = "down"
			healthy = false
			continue
		}
		checks[name] = "up"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Msg("Admin connected to system metrics SSE")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	h.writeMetrics(c, reqCtx)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from system metrics SSE")
			return
		case <-ticker.C:
			h.writeMetrics(c, reqCtx)
		}
	}
}

func (h *SystemHandler) writeMetrics(c *gin.Context, ctx context.Context) {
	data, err := json.Marshal(h.collect(ctx))
	if err != nil {
		return
	}
	writeSSE(c, data)
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := systemMetrics{
		Timestamp:  time.Now().Unix(),
		Uptime:     formatDuration(time.Since(h.startTime)),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.Sys,
		StackInuse: ms.StackInuse,
		NumGC:      ms.NumGC,
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
	}
	if h.streams != nil {
		m.ActiveSessions = h.streams()
	}

	qctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if depths, err := h.queues.QueueDepths(qctx); err == nil {
		m.Queues = depths
	} else {
		h.log.Debug().Err(err).Msg("Queue depth probe failed")
	}

	return m
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
