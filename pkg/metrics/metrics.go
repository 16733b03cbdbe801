package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 指标管理器
type Metrics struct {
	// 推送通道指标
	framesTotal     *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	reconnectsTotal prometheus.Counter
	connectionState prometheus.Gauge

	// 实体集合指标
	entityCount *prometheus.GaugeVec

	// 地图标记指标
	markerOpsTotal *prometheus.CounterVec
	markerCount    prometheus.Gauge

	// 定位指标
	fixesTotal     prometheus.Counter
	locationErrors *prometheus.CounterVec

	// REST协作方指标
	restRequestsTotal *prometheus.CounterVec
}

// NewMetrics 创建指标管理器
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		framesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_push_frames_total",
				Help: "Total push frames received, by message kind",
			},
			[]string{"kind"},
		),
		framesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_push_frames_dropped_total",
				Help: "Frames dropped by the router, by reason",
			},
			[]string{"reason"},
		),
		reconnectsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "guard_reconnect_attempts_total",
				Help: "Reconnection attempts scheduled after abnormal closure",
			},
		),
		connectionState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "guard_connection_state",
				Help: "Connection state (0 disconnected, 1 connecting, 2 connected, 3 error)",
			},
		),
		entityCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "guard_entities",
				Help: "Entities currently held in the store, by kind",
			},
			[]string{"kind"},
		),
		markerOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_marker_ops_total",
				Help: "Marker operations applied to the map surface, by op",
			},
			[]string{"op"},
		),
		markerCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "guard_markers",
				Help: "Markers currently present on the map surface",
			},
		),
		fixesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "guard_location_fixes_total",
				Help: "Device position fixes acquired",
			},
		),
		locationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_location_errors_total",
				Help: "Location acquisition failures, by kind",
			},
			[]string{"kind"},
		),
		restRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_rest_requests_total",
				Help: "REST collaborator calls, by path and status",
			},
			[]string{"path", "status"},
		),
	}
}

// RecordFrame 记录收到的推送帧
func (m *Metrics) RecordFrame(kind string) {
	m.framesTotal.WithLabelValues(kind).Inc()
}

// RecordDroppedFrame 记录被丢弃的帧
func (m *Metrics) RecordDroppedFrame(reason string) {
	m.framesDropped.WithLabelValues(reason).Inc()
}

// RecordReconnect 记录一次重连尝试
func (m *Metrics) RecordReconnect() {
	m.reconnectsTotal.Inc()
}

// SetConnectionState 设置连接状态
func (m *Metrics) SetConnectionState(state int) {
	m.connectionState.Set(float64(state))
}

// SetEntityCount 设置实体数量
func (m *Metrics) SetEntityCount(kind string, n int) {
	m.entityCount.WithLabelValues(kind).Set(float64(n))
}

// RecordMarkerOp 记录标记操作
func (m *Metrics) RecordMarkerOp(op string, n int) {
	if n > 0 {
		m.markerOpsTotal.WithLabelValues(op).Add(float64(n))
	}
}

// SetMarkerCount 设置当前标记数
func (m *Metrics) SetMarkerCount(n int) {
	m.markerCount.Set(float64(n))
}

// RecordFix 记录一次定位
func (m *Metrics) RecordFix() {
	m.fixesTotal.Inc()
}

// RecordLocationError 记录定位失败
func (m *Metrics) RecordLocationError(kind string) {
	m.locationErrors.WithLabelValues(kind).Inc()
}

// RecordRESTRequest 记录REST请求
func (m *Metrics) RecordRESTRequest(path, status string) {
	m.restRequestsTotal.WithLabelValues(path, status).Inc()
}
