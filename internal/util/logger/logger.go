// Package logger 提供 meshrouter 的统一日志系统
//
// 基于标准库 log/slog，支持：
//   - 按子系统配置日志级别
//   - 环境变量配置（MESHROUTER_LOG_LEVEL, MESHROUTER_LOG_FORMAT）
//   - 配置文件覆盖（Configure）
//   - 结构化日志
//
// 使用示例:
//
//	package neighbour
//
//	import "github.com/dep2p/go-meshrouter/internal/util/logger"
//
//	var log = logger.Logger("core/neighbour")
//
//	func foo() {
//	    log.Info("邻居出现", "peer", peerID.ShortString(), "transport", transport)
//	}
//
// 环境变量配置:
//
//	# 所有模块 info，propagation 模块 debug
//	MESHROUTER_LOG_LEVEL=core/propagation=debug,info
//
//	# JSON 格式输出
//	MESHROUTER_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调整级别）
	handlers sync.Map // map[string]*subsystemHandler
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回相同的 Logger 实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	handler := newHandler(subsystem, cfg.LevelForSubsystem(subsystem), cfg.Format)
	l := slog.New(handler)

	actual, loaded := loggers.LoadOrStore(subsystem, l)
	if !loaded {
		handlers.Store(subsystem, handler)
	}
	return actual.(*slog.Logger)
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// SetGlobalLevel 设置所有已创建子系统的日志级别，并作为之后创建的子系统的默认级别
func SetGlobalLevel(level slog.Level) {
	ConfigFromEnv().setDefaultLevel(level)
	handlers.Range(func(_, value any) bool {
		value.(*subsystemHandler).SetLevel(level)
		return true
	})
}

// Configure 应用配置文件中的日志设置
//
// level 为空时保持环境变量/默认值；无法识别的级别同样忽略。
func Configure(level string) {
	if level == "" {
		return
	}
	if lvl, ok := parseLevel(level); ok {
		SetGlobalLevel(lvl)
	}
}

// Discard 返回一个丢弃所有日志的 Logger（测试用）
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 通过 dynamicWriter 自动重定向到新的 writer。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}
