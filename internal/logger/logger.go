package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pool-watch/internal/models"
)

var (
	mu           sync.RWMutex
	activeLogger = newDefault()
	logFile      *os.File
)

// InitLogger 初始化日志系统。
func InitLogger(config *models.Config) error {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(config.LogLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var stdout io.Writer = os.Stdout
	if config.LogOutputFormat != "json" {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}

	output := stdout
	var file *os.File
	if config.LogFile != "" {
		file, err = openLogFile(config.LogFile)
		if err != nil {
			return err
		}
		// 文件始终写 JSON 便于采集
		output = zerolog.MultiLevelWriter(stdout, file)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	l := zerolog.New(output).Level(level).With().Timestamp().Str("service", "pool-watch").Logger()
	activeLogger = &l
	return nil
}

func newDefault() *zerolog.Logger {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}).With().Timestamp().Logger()
	return &l
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	return file, nil
}

// Close 关闭日志文件。
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Info 记录信息日志。
func Info(format string, v ...interface{}) {
	current().Info().Msgf(format, v...)
}

// Error 记录错误日志。
func Error(format string, v ...interface{}) {
	current().Error().Msgf(format, v...)
}

// Warn 记录警告日志。
func Warn(format string, v ...interface{}) {
	current().Warn().Msgf(format, v...)
}

// Debug 记录调试日志。
func Debug(format string, v ...interface{}) {
	current().Debug().Msgf(format, v...)
}

// SetLogLevel 设置日志级别。
func SetLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return
	}
	mu.Lock()
	l := activeLogger.Level(parsed)
	activeLogger = &l
	mu.Unlock()
}

// SetOutput 替换输出目标 测试中用于捕获日志。
func SetOutput(w io.Writer) {
	mu.Lock()
	l := activeLogger.Output(w)
	activeLogger = &l
	mu.Unlock()
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return activeLogger
}
