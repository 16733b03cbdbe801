package models

import (
	"time"

	"HibiscusGuard/pkg/geo"
)

// 警报类别
const (
	AlertTypeMedical  = "medical"
	AlertTypeFire     = "fire"
	AlertTypePolice   = "police"
	AlertTypeAccident = "accident"
	AlertTypeOther    = "other"
)

// 警报状态生命周期: open → assigned → in_progress → resolved
// cancelled 可从任意非终态进入；done 与 resolved 同为终态
const (
	AlertStatusOpen       = "open"
	AlertStatusAssigned   = "assigned"
	AlertStatusInProgress = "in_progress"
	AlertStatusResolved   = "resolved"
	AlertStatusCancelled  = "cancelled"
	AlertStatusDone       = "done"
)

// AlertLocation 警报位置，出现时必须同时携带经纬度
type AlertLocation struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	Address  string   `json:"address,omitempty"`
}

// Point 转换为几何坐标
func (l *AlertLocation) Point() geo.Point {
	return geo.Point{Lat: l.Lat, Lng: l.Lng}
}

// Alert 一条紧急警报
type Alert struct {
	ID                  string         `json:"id"`
	Type                string         `json:"type"`
	Status              string         `json:"status"`
	Location            *AlertLocation `json:"location,omitempty"`
	Note                string         `json:"note,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	AssignedResponderID string         `json:"assigned_responder,omitempty"`
	ETASeconds          *float64       `json:"eta_seconds,omitempty"`
	MediaRefs           []string       `json:"media_refs,omitempty"`
	ResolvedAt          *time.Time     `json:"resolved_at,omitempty"`
	MarkedDoneAt        *time.Time     `json:"marked_done_at,omitempty"`
}

// IsTerminal 是否处于终态
func (a *Alert) IsTerminal() bool {
	return StatusTerminal(a.Status)
}

// IsLive 是否应出现在实时视图（open/assigned/in_progress）
func (a *Alert) IsLive() bool {
	switch a.Status {
	case AlertStatusOpen, AlertStatusAssigned, AlertStatusInProgress:
		return true
	}
	return false
}

// StatusTerminal 判断某状态是否为终态
func StatusTerminal(status string) bool {
	switch status {
	case AlertStatusResolved, AlertStatusCancelled, AlertStatusDone:
		return true
	}
	return false
}

// statusRank 生命周期内的推进顺序，用于识别回退
var statusRank = map[string]int{
	AlertStatusOpen:       0,
	AlertStatusAssigned:   1,
	AlertStatusInProgress: 2,
	AlertStatusResolved:   3,
	AlertStatusDone:       3,
	AlertStatusCancelled:  3,
}

// StatusRegressive reports whether moving from old to new walks the
// lifecycle backwards. The store trusts the server either way; this
// only drives anomaly logging.
func StatusRegressive(old, new string) bool {
	or, ok1 := statusRank[old]
	nr, ok2 := statusRank[new]
	if !ok1 || !ok2 {
		return false
	}
	return nr < or
}

// AlertFragment 服务端推送/返回的警报片段，指针字段表示"未携带"
type AlertFragment struct {
	ID                  string         `json:"id"`
	Type                *string        `json:"type,omitempty"`
	Status              *string        `json:"status,omitempty"`
	Location            *AlertLocation `json:"location,omitempty"`
	Note                *string        `json:"note,omitempty"`
	CreatedAt           *time.Time     `json:"created_at,omitempty"`
	AssignedResponderID *string        `json:"assigned_responder,omitempty"`
	ETASeconds          *float64       `json:"eta_seconds,omitempty"`
	MediaRefs           []string       `json:"media_refs,omitempty"`
	ResolvedAt          *time.Time     `json:"resolved_at,omitempty"`
	MarkedDoneAt        *time.Time     `json:"marked_done_at,omitempty"`
}
