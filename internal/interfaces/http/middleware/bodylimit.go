package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicer/backend/internal/interfaces/http/dto"
)

// BodyLimit rejects invoice payloads larger than maxBytes with ERR_REQUEST_TOO_LARGE.
// Bodies without a declared length are capped while they are read.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			abortTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func abortTooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeRequestTooLarge,
		"Request body exceeds maximum allowed size",
		GetRequestID(c),
	))
}
