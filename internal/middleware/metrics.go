package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"useraccounts/internal/metrics"
)

// Metrics labels requests by the route template, not the raw path.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
