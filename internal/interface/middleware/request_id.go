package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oksasatya/ailens-auth/internal/application"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware injects a request_id into the Gin context for every request.
// A well-formed incoming X-Request-ID is reused; the id is echoed back.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestMeta attaches caller details to the request context for auditing.
// Register it after RealIP and RequestIDMiddleware.
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := application.WithRequestMeta(c.Request.Context(), application.RequestMeta{
			IP:        ipFromCtx(c),
			UserAgent: c.GetHeader("User-Agent"),
			RequestID: c.GetString("request_id"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
