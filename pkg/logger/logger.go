package logger

import (
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `env:"LOG_LEVEL"`       // debug/info/warn/error
	File       string `env:"LOG_FILE"`        // 为空时仅输出到控制台
	MaxSizeMB  int    `env:"LOG_MAX_SIZE"`    // 单文件最大体积
	MaxBackups int    `env:"LOG_MAX_BACKUPS"` // 保留文件数
	MaxAgeDays int    `env:"LOG_MAX_AGE"`     // 保留天数
	Compress   bool   `env:"LOG_COMPRESS"`
}

var global *zap.Logger = zap.NewNop()

// Init 初始化全局日志
func Init(cfg LogConfig) error {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil || cfg.Level == "" {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	global = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return nil
}

// L 返回全局 logger
func L() *zap.Logger { return global }

func Debug(msg string, fields ...zap.Field) { global.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { global.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { global.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { global.Error(msg, fields...) }

// Sync 刷新缓冲
func Sync() { _ = global.Sync() }
