package metrics

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStats 系统统计信息（健康检查用）
type SystemStats struct {
	Timestamp       time.Time `json:"timestamp"`
	CPUUsagePercent float64   `json:"cpu_usage_percent"`
	MemoryTotal     uint64    `json:"memory_total"`
	MemoryUsed      uint64    `json:"memory_used"`
	MemoryPercent   float64   `json:"memory_percent"`
	Goroutines      int       `json:"goroutines"`
}

// CollectSystemStats 采集一次系统快照
func CollectSystemStats() SystemStats {
	stats := SystemStats{
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUUsagePercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryTotal = vm.Total
		stats.MemoryUsed = vm.Used
		stats.MemoryPercent = vm.UsedPercent
	}

	return stats
}
