package main

import (
	"net/http"

	"voice-outreach/internal/app"
	"voice-outreach/internal/auth"
	"voice-outreach/internal/httpapi"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app.App, reg *prometheus.Registry) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := a.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Provider result callbacks, authenticated by the shared secret header.
	r.POST("/webhooks/voice", a.Webhook.HandleEvent)

	// Operator API and the external dispatch scheduler.
	v1 := r.Group("/v1")
	v1.Use(auth.RequireToken(a.Auth))
	httpapi.Handlers{
		Auth:       a.Auth,
		Dispatcher: a.Dispatcher,
		Screener:   a.Screener,
		Reporting:  a.Reporting,
		Campaigns:  a.Campaigns,
		Config:     a.Store,
	}.Register(v1)
}
