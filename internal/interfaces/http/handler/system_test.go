package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestSystemHandler_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewSystemHandler(pingerFunc(func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		}), "1.2.3")

		c, w := newTestContext(http.MethodGet, "/health")
		h.Health(c)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]any)
		assert.Equal(t, "healthy", data["status"])
		assert.Equal(t, "1.2.3", data["version"])
		assert.NotEmpty(t, data["go_version"])
	})

	t.Run("database down", func(t *testing.T) {
		h := NewSystemHandler(pingerFunc(func(context.Context) error {
			return errors.New("connection refused")
		}), "1.2.3")

		c, w := newTestContext(http.MethodGet, "/health")
		h.Health(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeResponse(t, w)
		assert.False(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "unhealthy", data["status"])
		assert.Equal(t, "connection refused", data["database"])
	})
}
