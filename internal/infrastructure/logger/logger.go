// Package logger 封装 zap，提供包级别的日志函数。
// Init 之前所有调用都落到 no-op logger，测试无需初始化。
package logger

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() {
	current.Store(zap.NewNop())
}

// Init 按级别初始化全局 logger
func Init(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("日志级别不合法: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("创建 logger 失败: %w", err)
	}
	current.Store(l)
	return l, nil
}

// Set 替换全局 logger（测试里可注入 observer）
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l)
}

func L() *zap.Logger {
	return current.Load()
}

func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

func Sync() {
	_ = L().Sync()
}
