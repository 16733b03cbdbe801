package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"HibiscusGuard/internal/session"
	"HibiscusGuard/internal/surface"
	"HibiscusGuard/pkg/errors"
	"HibiscusGuard/pkg/geo"
	"HibiscusGuard/pkg/metrics"
)

// Handlers 本地观测服务：把同步引擎的状态暴露给查看端
type Handlers struct {
	session *session.Session
	surface *surface.SSESurface
}

// New 创建处理器集合
func New(s *session.Session, sfc *surface.SSESurface) *Handlers {
	return &Handlers{session: s, surface: sfc}
}

// State 当前会话状态快照
func (h *Handlers) State(c *gin.Context) {
	resp := gin.H{
		"session_id": h.session.ID,
		"connection": h.session.Connection().State(),
		"permission": h.session.Tracker().State(),
		"alerts":     h.session.Store().LiveAlerts(),
		"responders": h.session.Store().Responders(),
		"markers":    h.session.Reconciler().MarkerCount(),
	}
	if fix, ok := h.session.Tracker().CurrentFix(); ok {
		resp["location"] = fix
	}
	if err := h.session.Connection().LastError(); err != nil {
		resp["connection_error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// Alerts 实时警报投影
func (h *Handlers) Alerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Store().LiveAlerts())
}

// NearbyAlerts 某点半径内的实时警报
func (h *Handlers) NearbyAlerts(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}
	radius, err := strconv.ParseFloat(c.DefaultQuery("radius", "5"), 64)
	if err != nil || radius <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius"})
		return
	}
	point := geo.Point{Lat: lat, Lng: lng}
	c.JSON(http.StatusOK, h.session.Store().AlertsNear(point, radius))
}

// AlertETA 某条警报的到达时间估算
func (h *Handlers) AlertETA(c *gin.Context) {
	id := c.Param("id")
	eta, ok := h.session.ETA().Estimate(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no estimate available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert_id": id, "eta_seconds": eta})
}

// Responders 可用响应者投影
func (h *Handlers) Responders(c *gin.Context) {
	if c.Query("status") == "available" {
		c.JSON(http.StatusOK, h.session.Store().AvailableResponders())
		return
	}
	c.JSON(http.StatusOK, h.session.Store().Responders())
}

// Markers 当前标记集合快照
func (h *Handlers) Markers(c *gin.Context) {
	c.JSON(http.StatusOK, h.surface.Markers())
}

// Events SSE标记操作流
func (h *Handlers) Events(c *gin.Context) {
	h.surface.Serve(c)
}

// Location 当前定位
func (h *Handlers) Location(c *gin.Context) {
	fix, ok := h.session.Tracker().CurrentFix()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "no fix available",
			"permission": h.session.Tracker().State(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fix":        fix,
		"permission": h.session.Tracker().State(),
		"history":    len(h.session.Tracker().History()),
	})
}

// StartTracking 开启连续定位。定位类失败按权限与可用性区分
// 响应码，其他失败一律按内部错误处理。
func (h *Handlers) StartTracking(c *gin.Context) {
	if err := h.session.Tracker().StartTracking(); err != nil {
		status := http.StatusInternalServerError
		if errors.IsLocation(err) {
			status = http.StatusConflict
			if errors.GetCode(err) == errors.CodeLocationDenied {
				status = http.StatusForbidden
			}
		}
		c.JSON(status, gin.H{
			"error":      err.Error(),
			"permission": h.session.Tracker().State(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"permission": h.session.Tracker().State()})
}

// StopTracking 停止连续定位
func (h *Handlers) StopTracking(c *gin.Context) {
	h.session.Tracker().StopTracking()
	c.JSON(http.StatusOK, gin.H{"permission": h.session.Tracker().State()})
}

// SetToken 写入会话令牌
func (h *Handlers) SetToken(c *gin.Context) {
	var body struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := h.session.Tokens().SetToken(body.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"connection": h.session.Connection().State(),
		"system":     metrics.CollectSystemStats(),
	})
}
