package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type staticDepths map[string]int64

func (s staticDepths) QueueDepths(context.Context) (map[string]int64, error) {
	return s, nil
}

func TestSystemHandler_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)

	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("refused") }

	cases := []struct {
		name   string
		probes map[string]Pinger
		want   int
	}{
		{name: "all up", probes: map[string]Pinger{"postgres": up, "redis": up}, want: http.StatusOK},
		{name: "redis down", probes: map[string]Pinger{"postgres": up, "redis": down}, want: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewSystemHandler(staticDepths{}, nil, tc.probes, zerolog.Nop())
			r := gin.New()
			r.GET("/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestSystemHandler_Collect(t *testing.T) {
	h := NewSystemHandler(staticDepths{"persist_violations_queue": 4}, func() int64 { return 2 }, nil, zerolog.Nop())

	m := h.collect(context.Background())
	assert.Equal(t, int64(2), m.ActiveSessions)
	assert.Equal(t, int64(4), m.Queues["persist_violations_queue"])
	assert.Positive(t, m.Goroutines)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1m 5s", formatDuration(65*time.Second))
	assert.Equal(t, "2h 0m 1s", formatDuration(2*time.Hour+time.Second))
	assert.Equal(t, "1d 1h 0m 0s", formatDuration(25*time.Hour))
}
