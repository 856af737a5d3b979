package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header is the request-id header honored and echoed by the service.
const Header = "X-Request-ID"

const contextKey = "request_id"

// Middleware tags each request with an id. An id supplied by the caller is
// kept so traces can span the legacy deployment and this one; otherwise a
// fresh uuid is issued. The id is echoed on the response.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the request id assigned by Middleware, or "".
func Value(c *gin.Context) string {
	if v, ok := c.Get(contextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
