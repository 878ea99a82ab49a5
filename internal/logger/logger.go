// Package logger 构建进程级 zap 日志器。
// 文件输出经 lumberjack 按大小轮转，标准错误始终保留一份副本。
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 日志器配置
type Options struct {
	// Level 日志级别: debug, info, warn, error
	Level string
	// File 日志文件路径；为空时只输出到标准错误
	File string
	// MaxSizeMB 单个日志文件大小上限（MB）
	MaxSizeMB int
	// MaxBackups 轮转后保留的历史文件数
	MaxBackups int
}

// New 创建日志器
// 级别字符串非法时回退到 info；构建失败时返回 Nop 日志器，
// 调用方无需判 nil。
func New(opts Options) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(opts.Level); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl),
	}

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotator), lvl))
	}

	return zap.New(zapcore.NewTee(cores...))
}
