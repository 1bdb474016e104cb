package size

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit bounds JSON request bodies. Conversations with a full
// program context stay well under it.
const DefaultBodyLimit int64 = 2 << 20

// BodySizeLimiter limits the request body size for the route group.
func BodySizeLimiter(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
