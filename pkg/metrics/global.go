package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	mu            sync.RWMutex
)

// InitGlobal 初始化全局指标实例
func InitGlobal(reg prometheus.Registerer) *Metrics {
	mu.Lock()
	defer mu.Unlock()
	globalMetrics = NewMetrics(reg)
	return globalMetrics
}

// Global 获取全局指标实例，未初始化时返回nil
func Global() *Metrics {
	mu.RLock()
	defer mu.RUnlock()
	return globalMetrics
}
