package models

import (
	"time"

	"HibiscusGuard/pkg/geo"
)

// Fix 设备的一次定位采样
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Altitude  float64   `json:"altitude,omitempty"`
	Heading   float64   `json:"heading,omitempty"`
	Speed     float64   `json:"speed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Point 转换为几何坐标
func (f Fix) Point() geo.Point {
	return geo.Point{Lat: f.Lat, Lng: f.Lng}
}
