package models

import (
	"time"

	"HibiscusGuard/pkg/geo"
)

// 响应者状态，全部由服务端断言，客户端不自行推断
const (
	ResponderStatusAvailable = "available"
	ResponderStatusBusy      = "busy"
	ResponderStatusOffline   = "offline"
)

// Responder 可被派遣的响应者/单位
type Responder struct {
	ID             string     `json:"id"`
	Name           string     `json:"name,omitempty"`
	Specialization string     `json:"specialization,omitempty"`
	Status         string     `json:"status"`
	Location       *geo.Point `json:"last_location,omitempty"`
	LastSeen       time.Time  `json:"last_seen"`
}

// ResponderFragment 服务端推送/返回的响应者片段
type ResponderFragment struct {
	ID             string     `json:"id"`
	Name           *string    `json:"name,omitempty"`
	Specialization *string    `json:"specialization,omitempty"`
	Status         *string    `json:"status,omitempty"`
	Location       *geo.Point `json:"last_location,omitempty"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
}
