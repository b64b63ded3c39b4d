package middleware

import (
	"net/http"

	"tollway/pkg/apperror"
	"tollway/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps the request body at maxBytes. A declared Content-Length
// over the cap is rejected with 413 before any handler runs; chunked or
// understated bodies fail on read once the cap is crossed.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, apperror.ErrPayloadTooLarge(maxBytes))
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
