package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolbill/backend/internal/interfaces/http/dto"
)

// BodyLimit rejects requests whose body exceeds maxBytes. Requests with a
// declared Content-Length over the limit are rejected up front; the reader
// is also wrapped so chunked bodies cannot exceed it either.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.CodePayloadTooLarge, "Request body too large", GetRequestID(c)))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
