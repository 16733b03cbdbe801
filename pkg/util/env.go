package util

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// LoadEnv 根据运行环境加载对应的 .env 文件
// 查找顺序: .env.<env>.local, .env.<env>, .env
func LoadEnv(env string) error {
	candidates := []string{
		fmt.Sprintf(".env.%s.local", env),
		fmt.Sprintf(".env.%s", env),
		".env",
	}
	loaded := false
	for _, f := range candidates {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
		loaded = true
	}
	if !loaded {
		return fmt.Errorf("no .env file found for environment %q", env)
	}
	return nil
}

// GetEnv 获取字符串环境变量
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvDefault 获取字符串环境变量，空则返回默认值
func GetEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetIntEnv 获取整型环境变量，解析失败返回0
func GetIntEnv(key string) int64 {
	return cast.ToInt64(os.Getenv(key))
}

// GetBoolEnv 获取布尔环境变量
func GetBoolEnv(key string) bool {
	return cast.ToBool(os.Getenv(key))
}

// GetDurationEnv 获取时长环境变量（如 "10s", "5m"）
func GetDurationEnv(key string) time.Duration {
	return cast.ToDuration(os.Getenv(key))
}

// GetFloatEnv 获取浮点环境变量
func GetFloatEnv(key string) float64 {
	return cast.ToFloat64(os.Getenv(key))
}
