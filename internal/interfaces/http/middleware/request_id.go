package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soybean-admin/uniauth/pkg/constants"
)

const headerRequestID = "X-Request-ID"

// RequestID assigns every request an id, honoring one supplied by an
// upstream proxy, and echoes it back in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(ctxKeyRequestID, requestID)
		withRequestValue(c, constants.ContextKeyRequestID, requestID)
		c.Header(headerRequestID, requestID)

		c.Next()
	}
}
