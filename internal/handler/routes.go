package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 挂载全部本地观测路由
func (h *Handlers) RegisterRoutes(r *gin.Engine, registry *prometheus.Registry) {
	r.GET("/state", h.State)
	r.GET("/alerts", h.Alerts)
	r.GET("/alerts/nearby", h.NearbyAlerts)
	r.GET("/alerts/:id/eta", h.AlertETA)
	r.GET("/responders", h.Responders)
	r.GET("/markers", h.Markers)
	r.GET("/events", h.Events)

	r.GET("/location", h.Location)
	r.POST("/tracking/start", h.StartTracking)
	r.POST("/tracking/stop", h.StopTracking)

	r.POST("/session/token", h.SetToken)

	r.GET("/healthz", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}
