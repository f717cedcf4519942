package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docgen-backend/internal/shared/metrics"
	"docgen-backend/internal/shared/telemetry"
)

// Logging emits a structured log and an HTTP metric per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, status, latency)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"bytes":       c.Writer.Size(),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if docType := c.GetString("docType"); docType != "" {
			fields["doc_type"] = docType
		}
		if genID := c.GetString("generationId"); genID != "" {
			fields["generation_id"] = genID
		}
		telemetry.Info("request.complete", fields)
	}
}
