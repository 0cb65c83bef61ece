// Package faceapi is the HTTP surface of the face service: enrollment
// and verification endpoints backed by the vision pipeline.
package faceapi

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/attendo/internal/api/handlers"
	"github.com/your-org/attendo/internal/observability"
)

func NewRouter(h *FaceHandler, system *handlers.SystemHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(loggingMiddleware())
	r.Use(cors.Default())

	r.GET("/healthz", system.Healthz)
	r.GET("/readyz", system.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/register", h.Register)
	r.POST("/verify", h.Verify)

	return r
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", duration.String(),
			"ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		slog.Info("request", attrs...)

		// Metric label uses the route template, not the raw path, so
		// identities in URLs don't blow up label cardinality.
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(status),
		).Observe(duration.Seconds())
	}
}
