package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/proctor-backend/internal/config"
	"github.com/stemsi/proctor-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter_RefillsPerInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"), "buckets are per key")

	now = now.Add(59 * time.Second)
	assert.False(t, rl.allow("1.2.3.4"))

	now = now.Add(time.Second)
	assert.True(t, rl.allow("1.2.3.4"))
}

func TestRateLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	rl := NewRateLimiter(ctx, 1, time.Minute)
	rl.now = func() time.Time { return now }

	rl.allow("1.2.3.4")
	now = now.Add(staleAfter + time.Second)
	rl.cleanup()

	assert.Empty(t, rl.visitors)
}

func TestRateLimiter_Middleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	r.GET("/start", NewRateLimiter(ctx, 1, time.Hour).Middleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/start", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/start", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestBrotli_CompressesLargeBodies(t *testing.T) {
	body := strings.Repeat("proctored ", 500)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, body) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=1.0")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "br", w.Header().Get("Content-Encoding"))
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, body, string(plain))

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", w.Body.String())
}

func TestBrotli_SkipsEventStreams(t *testing.T) {
	r := gin.New()
	r.Use(Brotli())
	r.GET("/feed", func(c *gin.Context) { c.String(http.StatusOK, strings.Repeat("x", 4096)) })

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Accept-Encoding", "br")
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Len(t, w.Body.String(), 4096)
}

func TestAuth_RoleGates(t *testing.T) {
	auth := service.NewAuthService(&config.Config{JWTSecret: "test-secret"})
	participant, err := auth.IssueToken("ana@example.com", service.RoleParticipant, time.Minute)
	require.NoError(t, err)
	admin, err := auth.IssueToken("proctor@example.com", service.RoleAdmin, time.Minute)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin", RequireJWT(auth), RequireRole(service.RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).Subject)
	})
	r.GET("/ws", RequireParticipantWSAuth(auth), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).Subject)
	})

	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{name: "admin via header", target: "/admin", header: "Bearer " + admin, want: http.StatusOK},
		{name: "admin via query", target: "/admin?token=" + admin, want: http.StatusOK},
		{name: "participant on admin", target: "/admin", header: "Bearer " + participant, want: http.StatusForbidden},
		{name: "missing token", target: "/admin", want: http.StatusUnauthorized},
		{name: "bad token", target: "/admin", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "participant ws", target: "/ws?token=" + participant, want: http.StatusOK},
		{name: "admin on ws", target: "/ws?token=" + admin, want: http.StatusForbidden},
		{name: "ws without token", target: "/ws", want: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
