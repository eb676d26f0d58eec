// 本文件用于进程级日志门面 保留 printf 风格调用 底层由 zap 输出
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"carlos-assist/internal/models"
)

var (
	mu        sync.RWMutex
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	active    = newLogger(zapcore.AddSync(os.Stdout))
	closeFile func() error
)

// InitLogger 初始化日志系统。
func InitLogger(config *models.Config) error {
	writer, closer, err := buildLogWriter(config.LogFile)
	if err != nil {
		return err
	}
	SetLogLevel(config.LogLevel)

	mu.Lock()
	defer mu.Unlock()
	if closeFile != nil {
		_ = closeFile()
	}
	active = newLogger(writer)
	closeFile = closer
	return nil
}

func newLogger(writer zapcore.WriteSyncer) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), writer, level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func buildLogWriter(logFile string) (zapcore.WriteSyncer, func() error, error) {
	if logFile == "" {
		return zapcore.AddSync(os.Stdout), nil, nil
	}

	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	logOutput, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("打开日志文件失败: %w", err)
	}

	return zapcore.AddSync(io.MultiWriter(os.Stdout, logOutput)), logOutput.Close, nil
}

// Info 记录信息日志。
func Info(format string, v ...interface{}) {
	sugar().Infof(format, v...)
}

// Error 记录错误日志。
func Error(format string, v ...interface{}) {
	sugar().Errorf(format, v...)
}

// Warn 记录警告日志。
func Warn(format string, v ...interface{}) {
	sugar().Warnf(format, v...)
}

// Debug 记录调试日志。
func Debug(format string, v ...interface{}) {
	sugar().Debugf(format, v...)
}

// SetLogLevel 设置日志级别 无法识别时回退 info
func SetLogLevel(raw string) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	level.SetLevel(lvl)
}

// GetLogger 获取底层 zap 实例 便于需要结构化字段的调用方
// 门面函数多包了一层调用 直接使用时需要把调用栈偏移还原
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return active.WithOptions(zap.AddCallerSkip(-1))
}

// Close 刷新缓冲并关闭日志文件
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	_ = active.Sync()
	if closeFile == nil {
		return nil
	}
	err := closeFile()
	closeFile = nil
	active = newLogger(zapcore.AddSync(os.Stdout))
	return err
}

func sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return active.Sugar()
}
