package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classroll/classroll-api/internal/service"
)

// Metrics records latency and status for every routed request. The route
// template is used as the path label so record ids do not explode metric
// cardinality.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
