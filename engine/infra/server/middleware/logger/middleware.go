package logger

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/repcoach/repcoach/engine/core"
	"github.com/repcoach/repcoach/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// Middleware injects a request-scoped logger carrying the request id and
// logs one line per completed request.
func Middleware(ctx context.Context) gin.HandlerFunc {
	base := logger.FromContext(ctx)
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			if id, err := core.NewID(); err == nil {
				requestID = id.String()
			}
		}
		c.Writer.Header().Set(RequestIDHeader, requestID)
		log := base.With("request_id", requestID)
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), log))
		c.Next()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status_code", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, "error", core.RedactString(msg))
		}
		logger.FromContext(c.Request.Context()).Info("Request completed", fields...)
	}
}
