package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicer/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*RateLimiter, *time.Time) {
	t.Helper()
	limiter := NewRateLimiter(limit, window)
	t.Cleanup(limiter.Stop)

	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestRateLimiter(t *testing.T) {
	t.Run("blocks requests exceeding limit", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 3, time.Minute)

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("client"), "request %d should be allowed", i+1)
		}
		assert.False(t, limiter.Allow("client"))
	})

	t.Run("separate limits per client", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 1, time.Minute)

		assert.True(t, limiter.Allow("clientA"))
		assert.False(t, limiter.Allow("clientA"))
		assert.True(t, limiter.Allow("clientB"))
	})

	t.Run("resets after window", func(t *testing.T) {
		limiter, now := newTestLimiter(t, 2, time.Minute)

		assert.True(t, limiter.Allow("client"))
		assert.True(t, limiter.Allow("client"))
		assert.False(t, limiter.Allow("client"))

		*now = now.Add(time.Minute)
		assert.True(t, limiter.Allow("client"))
		assert.Equal(t, 1, limiter.Remaining("client"))
	})

	t.Run("remaining", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 5, time.Minute)

		assert.Equal(t, 5, limiter.Remaining("new"))
		limiter.Allow("new")
		limiter.Allow("new")
		assert.Equal(t, 3, limiter.Remaining("new"))
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 100, time.Minute)
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)

		for i := 0; i < 150; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("shared") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 100, allowed)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		limiter.Stop()
		limiter.Stop()
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)

	router := gin.New()
	router.Use(RequestID())
	router.POST("/login", RateLimit(limiter), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := send()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send().Code)

	blocked := send()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))

	var resp dto.Response
	require.NoError(t, json.Unmarshal(blocked.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeRateLimited, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)
}

func TestRateLimitByKey(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)

	router := gin.New()
	router.Use(RateLimitByKey(limiter, func(c *gin.Context) string { return c.GetHeader("X-Client") }))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, tc := range []struct {
		client string
		want   int
	}{
		{"a", http.StatusOK},
		{"a", http.StatusTooManyRequests},
		{"b", http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Client", tc.client)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "client %s", tc.client)
	}
}
