package session

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"HibiscusGuard/internal/models"
	"HibiscusGuard/internal/router"
)

// 推送载荷的外层形状。字段因消息类型而异：实体事件嵌套在
// alert/responder 下，删除与状态变更把 alert_id 放在顶层。
type alertEnvelope struct {
	Alert models.AlertFragment `json:"alert"`
}

type responderEnvelope struct {
	Responder models.ResponderFragment `json:"responder"`
}

type statusChangedEnvelope struct {
	AlertID      string     `json:"alert_id"`
	Action       string     `json:"action"`
	MarkedDoneAt *time.Time `json:"marked_done_at"`
}

type deletedEnvelope struct {
	AlertID string `json:"alert_id"`
	Action  string `json:"action"`
}

// registerHandlers 将所有已知消息类型绑定到实体仓库
func (s *Session) registerHandlers() {
	s.router.Register(router.KindNewAlert, s.onNewAlert)
	s.router.Register(router.KindAlertAssigned, s.onAlertAssigned)
	s.router.Register(router.KindAlertResolved, s.onAlertResolved)
	s.router.Register(router.KindAlertStatusChanged, s.onAlertStatusChanged)
	s.router.Register(router.KindAlertDeleted, s.onAlertDeleted)
	s.router.Register(router.KindResponderUpdate, s.onResponderUpdate)
}

func (s *Session) onNewAlert(payload json.RawMessage) {
	var env alertEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logrus.Warnf("new_alert 载荷解析失败: %v", err)
		return
	}
	if env.Alert.Status == nil {
		status := models.AlertStatusOpen
		env.Alert.Status = &status
	}
	s.store.ApplyAlertEvent(router.KindNewAlert, env.Alert)
}

func (s *Session) onAlertAssigned(payload json.RawMessage) {
	var env alertEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logrus.Warnf("alert_assigned 载荷解析失败: %v", err)
		return
	}
	// 该事件隐含状态推进
	if env.Alert.Status == nil {
		status := models.AlertStatusAssigned
		env.Alert.Status = &status
	}
	s.store.ApplyAlertEvent(router.KindAlertAssigned, env.Alert)
}

func (s *Session) onAlertResolved(payload json.RawMessage) {
	var env alertEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logrus.Warnf("alert_resolved 载荷解析失败: %v", err)
		return
	}
	if env.Alert.Status == nil {
		status := models.AlertStatusResolved
		env.Alert.Status = &status
	}
	s.store.ApplyAlertEvent(router.KindAlertResolved, env.Alert)
}

func (s *Session) onAlertStatusChanged(payload json.RawMessage) {
	var env statusChangedEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logrus.Warnf("alert_status_changed 载荷解析失败: %v", err)
		return
	}
	if env.Action != "marked_done" {
		logrus.Debugf("未处理的状态变更动作: %s", env.Action)
		return
	}
	status := models.AlertStatusDone
	s.store.ApplyAlertEvent(router.KindAlertStatusChanged, models.AlertFragment{
		ID:           env.AlertID,
		Status:       &status,
		MarkedDoneAt: env.MarkedDoneAt,
	})
}

func (s *Session) onAlertDeleted(payload json.RawMessage) {
	var env deletedEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logrus.Warnf("alert_deleted 载荷解析失败: %v", err)
		return
	}
	s.store.ApplyAlertEvent(router.KindAlertDeleted, models.AlertFragment{ID: env.AlertID})
}

func (s *Session) onResponderUpdate(payload json.RawMessage) {
	var env responderEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		logrus.Warnf("responder_update 载荷解析失败: %v", err)
		return
	}
	s.store.ApplyResponderEvent(router.KindResponderUpdate, env.Responder)
}
