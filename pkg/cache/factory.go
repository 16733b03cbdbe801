package cache

import (
	"fmt"
	"strings"
)

// NewCache 按配置创建缓存实例。客户端默认本地缓存；redis 仅在
// 多个观测进程需要共享派生值时有意义。
func NewCache(config Config) (Cache, error) {
	switch strings.ToLower(config.Type) {
	case "", "local", "gocache":
		return NewGoCache(config.Local), nil
	case "redis":
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}
