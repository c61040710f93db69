// Package logging 结构化日志（zerolog 全局实例）
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger 全局日志实例
var Logger zerolog.Logger

// Config 日志配置
type Config struct {
	Level      string
	Pretty     bool
	TimeFormat string
}

// DefaultConfig 默认日志配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Pretty:     true,
		TimeFormat: time.RFC3339,
	}
}

// Init 按配置初始化全局日志
func Init(cfg Config) {
	InitWithWriter(cfg, os.Stderr)
}

// InitWithWriter 初始化全局日志并指定输出（测试中用于捕获日志）
func InitWithWriter(cfg Config, w io.Writer) {
	output := w

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: timeFormat,
		}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	Logger = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Component 返回带 component 字段的子日志
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Debug 调试级别事件
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info 信息级别事件
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn 警告级别事件
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error 错误级别事件
func Error() *zerolog.Event {
	return Logger.Error()
}

func init() {
	Init(DefaultConfig())
}
