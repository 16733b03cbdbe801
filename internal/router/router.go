package router

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"HibiscusGuard/pkg/errors"
	"HibiscusGuard/pkg/metrics"
)

// 推送消息类型常量
const (
	KindNewAlert           = "new_alert"
	KindAlertAssigned      = "alert_assigned"
	KindAlertResolved      = "alert_resolved"
	KindAlertStatusChanged = "alert_status_changed"
	KindAlertDeleted       = "alert_deleted"
	KindResponderUpdate    = "responder_update"
)

// Handler 处理一种消息类型的完整载荷（含type字段的原始帧）
type Handler func(payload json.RawMessage)

// envelope 推送信封，只预解析type字段
type envelope struct {
	Type string `json:"type"`
}

// Router 按消息类型分发推送帧
//
// 帧在连接的读协程上被严格按到达顺序处理，Router 自身不
// 引入并发。解析失败的帧被丢弃并记录，不中断后续处理；
// 未注册的类型被静默忽略（向前兼容）。
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New 创建路由器
func New() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register 注册某消息类型的唯一处理器，重复注册时覆盖
func (r *Router) Register(kind string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// HandleFrame 处理一帧。返回的协议错误仅用于观测，调用方
// 不应据此中断消息流。
func (r *Router) HandleFrame(frame []byte) error {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		logrus.Warnf("推送帧解析失败，已丢弃: %v", err)
		if mt := metrics.Global(); mt != nil {
			mt.RecordDroppedFrame("malformed")
		}
		return errors.WrapCode(errors.CodeProtocol, err, "malformed push frame")
	}
	if env.Type == "" {
		logrus.Warnf("推送帧缺少type字段，已丢弃")
		if mt := metrics.Global(); mt != nil {
			mt.RecordDroppedFrame("missing_type")
		}
		return errors.WithCode(errors.CodeProtocol, "push frame missing type")
	}

	if mt := metrics.Global(); mt != nil {
		mt.RecordFrame(env.Type)
	}

	r.mu.RLock()
	h, ok := r.handlers[env.Type]
	r.mu.RUnlock()
	if !ok {
		// 未知类型容忍不拒绝
		logrus.Debugf("未注册的消息类型: %s", env.Type)
		return nil
	}

	h(frame)
	return nil
}
